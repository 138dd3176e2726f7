package security

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrCertificateEncoding is returned when a certificate string or file
	// cannot be decoded into an X.509 certificate
	ErrCertificateEncoding = errors.New("invalid certificate encoding")
)

const pemCertificateType = "CERTIFICATE"

// ParseCertificateString decodes a certificate as published in SMP endpoint
// metadata. Both PEM (with BEGIN/END armour) and bare base64 DER are
// accepted; whitespace and line breaks inside the base64 body are ignored.
//
// An empty or whitespace-only string yields (nil, nil): callers decide
// whether a missing certificate is acceptable.
func ParseCertificateString(s string) (*x509.Certificate, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if strings.Contains(s, "-----BEGIN") {
		return parsePEM([]byte(s))
	}

	der, err := base64.StdEncoding.DecodeString(stripWhitespace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: base64: %v", ErrCertificateEncoding, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateEncoding, err)
	}
	return cert, nil
}

// LoadCertificateFile reads a PEM or DER encoded certificate from disk.
func LoadCertificateFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	if bytes.Contains(data, []byte("-----BEGIN")) {
		return parsePEM(data)
	}

	cert, err := x509.ParseCertificate(data)
	if err != nil {
		// Some deployments store bare base64 without armour
		if c, perr := ParseCertificateString(string(data)); perr == nil && c != nil {
			return c, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCertificateEncoding, err)
	}
	return cert, nil
}

// SameSerialNumber reports whether both certificates carry the same serial
// number. Nil certificates never match.
func SameSerialNumber(a, b *x509.Certificate) bool {
	if a == nil || b == nil || a.SerialNumber == nil || b.SerialNumber == nil {
		return false
	}
	return a.SerialNumber.Cmp(b.SerialNumber) == 0
}

// SerialHex returns the certificate serial number in hex, for logging.
func SerialHex(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}
	return cert.SerialNumber.Text(16)
}

func parsePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("%w: no PEM certificate block", ErrCertificateEncoding)
		}
		if block.Type != pemCertificateType {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCertificateEncoding, err)
		}
		return cert, nil
	}
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}

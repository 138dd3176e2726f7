package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TLS version constants
const (
	TLS12 = tls.VersionTLS12
	TLS13 = tls.VersionTLS13
)

// RecommendedTLS12CipherSuites are the TLS 1.2 suites allowed by default
var RecommendedTLS12CipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// HTTPSConfig contains HTTPS client/server configuration
type HTTPSConfig struct {
	MinTLSVersion uint16
	MaxTLSVersion uint16
	CipherSuites  []uint16
	// RootCAs verifies servers; nil uses the system pool
	RootCAs         *x509.CertPool
	Timeout         time.Duration
	IdleConnTimeout time.Duration
}

// DefaultHTTPSConfig returns a default HTTPS configuration
func DefaultHTTPSConfig() *HTTPSConfig {
	return &HTTPSConfig{
		MinTLSVersion:   TLS12,
		MaxTLSVersion:   TLS13,
		CipherSuites:    RecommendedTLS12CipherSuites,
		Timeout:         30 * time.Second,
		IdleConnTimeout: 90 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultHTTPSConfig
func (c *HTTPSConfig) withDefaults() *HTTPSConfig {
	d := DefaultHTTPSConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.MinTLSVersion == 0 {
		out.MinTLSVersion = d.MinTLSVersion
	}
	if out.MaxTLSVersion == 0 {
		out.MaxTLSVersion = d.MaxTLSVersion
	}
	if out.CipherSuites == nil {
		out.CipherSuites = d.CipherSuites
	}
	if out.Timeout == 0 {
		out.Timeout = d.Timeout
	}
	if out.IdleConnTimeout == 0 {
		out.IdleConnTimeout = d.IdleConnTimeout
	}
	return &out
}

// NewHTTPClient creates an HTTP client enforcing the TLS settings
func NewHTTPClient(config *HTTPSConfig) *http.Client {
	config = config.withDefaults()

	tlsConfig := &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
		RootCAs:      config.RootCAs,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsConfig,
		IdleConnTimeout:     config.IdleConnTimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// ServerTLSConfig returns the TLS settings for the inbound listener
func ServerTLSConfig(config *HTTPSConfig) *tls.Config {
	config = config.withDefaults()
	return &tls.Config{
		MinVersion:   config.MinTLSVersion,
		MaxVersion:   config.MaxTLSVersion,
		CipherSuites: config.CipherSuites,
	}
}

// LoadCertPool reads PEM certificates from path into a new pool
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no PEM certificates in %s", path)
	}
	return pool, nil
}

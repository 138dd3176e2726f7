// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package security decodes and compares X.509 certificates.

SMP endpoint registrations carry the access point certificate as base64
DER, sometimes wrapped in PEM armour or broken over several lines.
[ParseCertificateString] accepts all of these forms:

	cert, err := security.ParseCertificateString(endpoint.Certificate)
	if errors.Is(err, security.ErrCertificateEncoding) {
	    // neither PEM nor base64 DER
	}

The node's own certificate is typically read from disk:

	own, err := security.LoadCertificateFile("/etc/as2/ap.crt")

Certificates are matched by serial number only:

	if !security.SameSerialNumber(own, cert) {
	    // directory points at a different certificate
	}
*/
package security

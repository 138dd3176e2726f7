// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package transport provides the HTTPS settings shared by the SMP client and
the inbound listener.

eDelivery requires TLS 1.2 or later. The package defaults to a TLS 1.2
minimum with TLS 1.3 preferred, and restricts TLS 1.2 to ECDHE AEAD
cipher suites:
  - TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256
  - TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384
  - TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256

# Client Usage

	client := transport.NewHTTPClient(&transport.HTTPSConfig{
	    MinTLSVersion: transport.TLS12,
	    Timeout:       10 * time.Second,
	})
	smp := discovery.NewSMPClientWithConfig(discovery.SMPClientConfig{HTTPClient: client})

# Server Usage

	srv := &http.Server{TLSConfig: transport.ServerTLSConfig(nil)}
*/
package transport

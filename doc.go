// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as2sbd verifies that inbound AS2 Standard Business Documents were
addressed to this access point before they are handed to business handlers.

# Overview

In an eDelivery network, a sender looks up the receiving participant in the
SMP directory and transmits the document to the access point published
there. A receiving access point can repeat the lookup using the identifiers
in the document's Standard Business Document Header (SBDH) and confirm that
the directory really points at itself: the endpoint URL must match and the
published certificate must carry the same serial number as its own.

go-as2sbd implements that check as a stage of an AS2 receive pipeline,
together with the SMP and BDXL clients it needs.

# Specifications Implemented

  - GS1 / UN/CEFACT Standard Business Document Header 1.3
  - OASIS BDX Service Metadata Publishing 1.0 (busdox namespace)
  - OASIS BDX Location (BDXL) 1.0, U-NAPTR SMP discovery
  - AS2 transport profiles busdox-transport-as2-ver1p0 and ver2p0

# Package Structure

	github.com/sirosfoundation/go-as2sbd/pkg/identifier - Participant, document type and process identifiers
	github.com/sirosfoundation/go-as2sbd/pkg/sbdh       - SBD parsing, identifier extraction, builder
	github.com/sirosfoundation/go-as2sbd/pkg/discovery  - SMP client and BDXL SMP location
	github.com/sirosfoundation/go-as2sbd/pkg/security   - Certificate decoding and serial comparison
	github.com/sirosfoundation/go-as2sbd/pkg/receiver   - Receiver settings and endpoint verification
	github.com/sirosfoundation/go-as2sbd/pkg/sbd        - Pipeline module and handler registry

The cmd/sbd-receiver binary wraps the module in an HTTP intake with a
document archive (MongoDB or in memory) and Prometheus metrics.

# Quick Start

	settings := receiver.NewSettings()
	settings.SetLookupClient(discovery.NewDiscoveryClient("https://smp.example.com"))
	settings.SetOwnEndpointURL("https://ap.example.com/as2")
	settings.SetOwnCertificate(cert)
	settings.SetReceiverCheckEnabled(true)

	module := sbd.NewModule(sbd.ModuleConfig{
	    Settings: settings,
	    Registry: sbd.NewRegistry(myHandler),
	})

	err := module.Handle(ctx, sbd.ActionStore, sbd.Message{
	    ID:   messageID,
	    Kind: sbd.KindAS2,
	    Data: decryptedPayload,
	})

A non-nil error is a *sbd.ProcessingError whose Kind tells parse failures,
directory faults and receiver mismatches apart.

# Endpoint URL Matching

The resolved endpoint URL is accepted when it contains the configured URL
as a substring, so "https://ap.example.com/as2" also accepts
"https://ap.example.com/as2;v=2". Configure the full URL, including the
path, to keep the match tight.

# License

BSD-2-Clause License
*/
package as2sbd

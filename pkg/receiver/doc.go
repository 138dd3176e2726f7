// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package receiver verifies that an inbound business document was addressed to
this access point.

The receiver, document type and process identifiers from the envelope are
looked up in the directory (SMP) under the AS2 transport profile. The
document is accepted only when the resolved endpoint address contains the
node's own URL and the resolved certificate carries the same serial number as
the node's own certificate. Every other result is Rejected or LookupFailed,
with a Cause wrapping one of the package error sentinels.

The node identity and the lookup client live in [Settings], which is
populated at startup:

	settings := receiver.NewSettings()
	settings.SetReceiverCheckEnabled(true)
	settings.SetLookupClient(discovery.NewDiscoveryClient("https://smp.example.com"))
	settings.SetOwnEndpointURL("https://ap.example.com/as2")
	settings.SetOwnCertificate(cert)

	v := receiver.NewVerifier(receiver.VerifierConfig{Settings: settings})
	outcome := v.VerifyReceiver(ctx, ids.Receiver, ids.DocumentType, ids.Process, messageID)
	if err := outcome.Err(); err != nil {
		// reject the message
	}

URL matching is a substring test: "https://ap.example.com/as2;v=2" matches an
own URL of "https://ap.example.com/as2". A directory entry that merely embeds
the own URL in a longer address therefore also matches.
*/
package receiver

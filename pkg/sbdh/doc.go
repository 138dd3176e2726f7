// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package sbdh implements the UN/CEFACT Standard Business Document (SBD)
envelope used to wrap business documents exchanged over AS2.

An SBD consists of a StandardBusinessDocumentHeader followed by exactly one
business message element:

	<StandardBusinessDocument xmlns="http://www.unece.org/cefact/namespaces/StandardBusinessDocumentHeader">
	  <StandardBusinessDocumentHeader>
	    <HeaderVersion>1.0</HeaderVersion>
	    <Sender><Identifier Authority="iso6523-actorid-upis">0088:123</Identifier></Sender>
	    <Receiver><Identifier Authority="iso6523-actorid-upis">0088:456</Identifier></Receiver>
	    <DocumentIdentification>...</DocumentIdentification>
	    <BusinessScope>
	      <Scope><Type>DOCUMENTID</Type><InstanceIdentifier>...</InstanceIdentifier></Scope>
	      <Scope><Type>PROCESSID</Type><InstanceIdentifier>...</InstanceIdentifier></Scope>
	    </BusinessScope>
	  </StandardBusinessDocumentHeader>
	  <Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2">...</Invoice>
	</StandardBusinessDocument>

# Parsing

[Parse] validates the envelope structure and returns a [Document].
[ExtractIdentifiers] reads the receiver, document type and process
identifiers needed for an SMP lookup; absent identifiers are reported as nil
rather than as an error.

# Building

	doc, err := sbdh.NewBuilder().
	    WithSender(sender).
	    WithReceiver(receiver).
	    WithDocumentType(docType).
	    WithProcess(process).
	    WithBusinessMessage(invoiceXML).
	    Build()
	data, err := doc.Marshal()

Reference: https://docs.peppol.eu/edelivery/envelope/
*/
package sbdh

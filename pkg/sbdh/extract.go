package sbdh

import (
	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// Identifiers holds the routing identifiers extracted from a header. Any
// identifier that is absent or empty in the header is nil.
type Identifiers struct {
	Sender             *identifier.ParticipantIdentifier
	Receiver           *identifier.ParticipantIdentifier
	DocumentType       *identifier.DocumentTypeIdentifier
	Process            *identifier.ProcessIdentifier
	InstanceIdentifier string
}

// Complete reports whether receiver, document type and process are present,
// which is what an SMP lookup needs.
func (ids Identifiers) Complete() bool {
	return ids.Receiver != nil && ids.DocumentType != nil && ids.Process != nil
}

// ExtractIdentifiers reads the sender, receiver, document type and process
// identifiers from the document header. It never fails: malformed or
// missing identifiers are reported as nil so the caller can decide.
func ExtractIdentifiers(doc *Document) Identifiers {
	if doc == nil {
		return Identifiers{}
	}

	ids := Identifiers{
		InstanceIdentifier: doc.InstanceIdentifier(),
		Sender:             firstPartner(doc.Header.Sender),
		Receiver:           firstPartner(doc.Header.Receiver),
	}

	if scope := doc.ScopeByType(ScopeDocumentID); scope != nil {
		scheme := scope.Identifier
		if scheme == "" {
			scheme = identifier.SchemeDocumentType
		}
		if d, err := identifier.NewDocumentTypeIdentifier(scheme, scope.InstanceIdentifier); err == nil {
			ids.DocumentType = &d
		}
	}

	if scope := doc.ScopeByType(ScopeProcessID); scope != nil {
		scheme := scope.Identifier
		if scheme == "" {
			scheme = identifier.SchemeProcess
		}
		if p, err := identifier.NewProcessIdentifier(scheme, scope.InstanceIdentifier); err == nil {
			ids.Process = &p
		}
	}

	return ids
}

func firstPartner(partners []Partner) *identifier.ParticipantIdentifier {
	if len(partners) == 0 {
		return nil
	}
	id := partners[0].Identifier
	p, err := identifier.NewParticipantIdentifier(id.Authority, id.Value)
	if err != nil {
		return nil
	}
	return &p
}

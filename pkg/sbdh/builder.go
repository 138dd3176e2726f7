package sbdh

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// Builder provides a fluent interface for creating Standard Business Documents
type Builder struct {
	doc *Document
	err error
}

// NewBuilder creates a new SBD builder
func NewBuilder() *Builder {
	return &Builder{
		doc: &Document{
			Header: Header{
				HeaderVersion: HeaderVersion,
				BusinessScope: &BusinessScope{},
			},
		},
	}
}

// WithSender sets the sender participant
func (b *Builder) WithSender(p identifier.ParticipantIdentifier) *Builder {
	if b.err != nil {
		return b
	}
	b.doc.Header.Sender = []Partner{{Identifier: PartnerIdentifier{Authority: p.Scheme(), Value: p.Value()}}}
	return b
}

// WithReceiver sets the receiver participant
func (b *Builder) WithReceiver(p identifier.ParticipantIdentifier) *Builder {
	if b.err != nil {
		return b
	}
	b.doc.Header.Receiver = []Partner{{Identifier: PartnerIdentifier{Authority: p.Scheme(), Value: p.Value()}}}
	return b
}

// WithDocumentType sets the DOCUMENTID business scope
func (b *Builder) WithDocumentType(d identifier.DocumentTypeIdentifier) *Builder {
	if b.err != nil {
		return b
	}
	b.setScope(Scope{Type: ScopeDocumentID, InstanceIdentifier: d.Value(), Identifier: d.Scheme()})
	return b
}

// WithProcess sets the PROCESSID business scope
func (b *Builder) WithProcess(p identifier.ProcessIdentifier) *Builder {
	if b.err != nil {
		return b
	}
	b.setScope(Scope{Type: ScopeProcessID, InstanceIdentifier: p.Value(), Identifier: p.Scheme()})
	return b
}

// WithInstanceIdentifier sets the document instance identifier
func (b *Builder) WithInstanceIdentifier(id string) *Builder {
	if b.err != nil {
		return b
	}
	b.doc.Header.DocumentIdentification.InstanceIdentifier = id
	return b
}

// WithDocumentIdentification sets standard, type version and type
func (b *Builder) WithDocumentIdentification(standard, typeVersion, docType string) *Builder {
	if b.err != nil {
		return b
	}
	di := &b.doc.Header.DocumentIdentification
	di.Standard = standard
	di.TypeVersion = typeVersion
	di.Type = docType
	return b
}

// WithCreationTime sets the creation timestamp
func (b *Builder) WithCreationTime(t time.Time) *Builder {
	if b.err != nil {
		return b
	}
	b.doc.Header.DocumentIdentification.CreationDateAndTime = t.UTC().Format(time.RFC3339)
	return b
}

// WithBusinessMessage sets the business payload from raw XML
func (b *Builder) WithBusinessMessage(content []byte) *Builder {
	if b.err != nil {
		return b
	}
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(content); err != nil {
		b.err = fmt.Errorf("parsing business message: %w", err)
		return b
	}
	if tree.Root() == nil {
		b.err = fmt.Errorf("business message has no root element")
		return b
	}
	b.doc.business = tree.Root().Copy()
	return b
}

// Build creates the document
func (b *Builder) Build() (*Document, error) {
	if b.err != nil {
		return nil, b.err
	}

	if len(b.doc.Header.Sender) == 0 {
		return nil, fmt.Errorf("sender is required")
	}
	if len(b.doc.Header.Receiver) == 0 {
		return nil, fmt.Errorf("receiver is required")
	}
	if b.doc.business == nil {
		return nil, fmt.Errorf("business message is required")
	}

	di := &b.doc.Header.DocumentIdentification
	if di.InstanceIdentifier == "" {
		di.InstanceIdentifier = uuid.NewString()
	}
	if di.CreationDateAndTime == "" {
		di.CreationDateAndTime = time.Now().UTC().Format(time.RFC3339)
	}
	if di.Type == "" {
		di.Type = b.doc.business.Tag
	}
	if len(b.doc.Header.BusinessScope.Scope) == 0 {
		b.doc.Header.BusinessScope = nil
	}

	return b.doc, nil
}

func (b *Builder) setScope(s Scope) {
	scopes := b.doc.Header.BusinessScope
	for i := range scopes.Scope {
		if scopes.Scope[i].Type == s.Type {
			scopes.Scope[i] = s
			return
		}
	}
	scopes.Scope = append(scopes.Scope, s)
}

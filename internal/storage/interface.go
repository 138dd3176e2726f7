// Package storage provides the archive for received Standard Business
// Documents.
//
// # Interface Design
//
//   - [DocumentStore]: metadata of received documents (identifiers,
//     correlation id, checksum)
//   - [EnvelopeStore]: the raw envelope bytes, streamed to blob storage
//
// The [Store] interface combines both.
//
// # Implementations
//
// The mongodb sub-package stores metadata in a collection and envelopes in
// GridFS. The memory sub-package keeps everything in process and is meant
// for development and tests.
//
// # Concurrency
//
// All store implementations must be safe for concurrent use from multiple
// goroutines.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicate is returned when a document with the same correlation id
// has already been archived
var ErrDuplicate = errors.New("document already archived")

// Store is the main storage interface combining all sub-stores
type Store interface {
	DocumentStore
	EnvelopeStore

	// Close releases storage resources
	Close(ctx context.Context) error

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// DocumentStore manages archived document metadata
type DocumentStore interface {
	// CreateDocument records a received document. The ID is generated when
	// empty.
	CreateDocument(ctx context.Context, doc *Document) error

	// GetDocument retrieves a document by ID. Returns nil, nil if not found.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetDocumentByCorrelationID retrieves a document by the AS2 message id
	// it arrived with. Returns nil, nil if not found.
	GetDocumentByCorrelationID(ctx context.Context, correlationID string) (*Document, error)

	// ListDocuments returns documents newest first
	ListDocuments(ctx context.Context, filter *DocumentFilter) ([]*Document, error)
}

// EnvelopeStore manages raw envelope bytes
type EnvelopeStore interface {
	// StoreEnvelope stores the raw envelope and returns its ID
	StoreEnvelope(ctx context.Context, envelope *EnvelopeData) (string, error)

	// GetEnvelope retrieves a stored envelope. Returns nil, nil if not found.
	GetEnvelope(ctx context.Context, id string) (*EnvelopeData, error)

	// DeleteEnvelope removes a stored envelope. Deleting a missing envelope
	// is not an error.
	DeleteEnvelope(ctx context.Context, id string) error
}

// Document is the archived metadata of a received SBD
type Document struct {
	ID            string `bson:"_id" json:"id"`
	CorrelationID string `bson:"correlation_id" json:"correlationId"`

	// SBDH header values
	InstanceIdentifier string `bson:"instance_identifier" json:"instanceIdentifier"`
	Sender             string `bson:"sender,omitempty" json:"sender,omitempty"`
	Receiver           string `bson:"receiver,omitempty" json:"receiver,omitempty"`
	DocumentType       string `bson:"document_type,omitempty" json:"documentType,omitempty"`
	Process            string `bson:"process,omitempty" json:"process,omitempty"`
	// BusinessMessage is the local name of the payload root element
	BusinessMessage string `bson:"business_message" json:"businessMessage"`

	// Envelope reference
	EnvelopeID string `bson:"envelope_id" json:"envelopeId"`
	Size       int64  `bson:"size" json:"size"`
	Checksum   string `bson:"checksum" json:"checksum"`

	CreatedAt  *time.Time `bson:"created_at,omitempty" json:"createdAt,omitempty"`
	ReceivedAt time.Time  `bson:"received_at" json:"receivedAt"`
}

// DocumentFilter narrows ListDocuments
type DocumentFilter struct {
	Receiver     string
	DocumentType string
	Since        *time.Time
	Limit        int
	Offset       int
}

// EnvelopeData holds raw envelope bytes for storage/retrieval
type EnvelopeData struct {
	ID            string
	CorrelationID string
	Data          []byte
	// Checksum is the hex SHA-256 of Data, computed on store when empty
	Checksum string
}

// Package identifier provides the scheme-qualified identifiers carried in a
// Standard Business Document header and used for SMP lookups: the
// participant (sender or receiver), the document type and the business
// process.
//
// Identifiers are immutable once constructed. Their URI-encoded form is
// "<scheme>::<value>", which is the form SMP servers expect in request paths.
package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Default identifier schemes used by the PEPPOL network.
const (
	// SchemeParticipant is the ISO 6523 participant identifier scheme
	SchemeParticipant = "iso6523-actorid-upis"
	// SchemeDocumentType is the document type identifier scheme
	SchemeDocumentType = "busdox-docid-qns"
	// SchemeProcess is the process identifier scheme
	SchemeProcess = "cenbii-procid-ubl"
)

// uriSeparator separates scheme and value in the URI-encoded form.
const uriSeparator = "::"

var (
	// ErrEmptyValue is returned when an identifier value is empty
	ErrEmptyValue = errors.New("identifier value is empty")
	// ErrInvalidURI is returned when a URI-encoded identifier cannot be split
	ErrInvalidURI = errors.New("invalid URI-encoded identifier")
)

// simple is the shared scheme+value representation.
type simple struct {
	scheme string
	value  string
}

func newSimple(scheme, value string) (simple, error) {
	scheme = strings.TrimSpace(scheme)
	value = strings.TrimSpace(value)
	if value == "" {
		return simple{}, ErrEmptyValue
	}
	return simple{scheme: scheme, value: value}, nil
}

func parseURI(s string) (simple, error) {
	scheme, value, ok := strings.Cut(strings.TrimSpace(s), uriSeparator)
	if !ok || scheme == "" {
		return simple{}, fmt.Errorf("%w: %q", ErrInvalidURI, s)
	}
	return newSimple(scheme, value)
}

func (s simple) uri() string {
	if s.scheme == "" {
		return s.value
	}
	return s.scheme + uriSeparator + s.value
}

// ParticipantIdentifier identifies a sender or receiver participant.
type ParticipantIdentifier struct{ id simple }

// NewParticipantIdentifier creates a participant identifier.
func NewParticipantIdentifier(scheme, value string) (ParticipantIdentifier, error) {
	id, err := newSimple(scheme, value)
	if err != nil {
		return ParticipantIdentifier{}, fmt.Errorf("participant: %w", err)
	}
	return ParticipantIdentifier{id: id}, nil
}

// ParseParticipantIdentifier parses the "<scheme>::<value>" form.
func ParseParticipantIdentifier(uri string) (ParticipantIdentifier, error) {
	id, err := parseURI(uri)
	if err != nil {
		return ParticipantIdentifier{}, fmt.Errorf("participant: %w", err)
	}
	return ParticipantIdentifier{id: id}, nil
}

// Scheme returns the identifier scheme
func (p ParticipantIdentifier) Scheme() string { return p.id.scheme }

// Value returns the identifier value
func (p ParticipantIdentifier) Value() string { return p.id.value }

// URIEncoded returns "<scheme>::<value>"
func (p ParticipantIdentifier) URIEncoded() string { return p.id.uri() }

// String implements fmt.Stringer
func (p ParticipantIdentifier) String() string { return p.id.uri() }

// Equal reports whether both identifiers denote the same participant.
// Participant values are compared case-insensitively.
func (p ParticipantIdentifier) Equal(other ParticipantIdentifier) bool {
	return strings.EqualFold(p.id.scheme, other.id.scheme) &&
		strings.EqualFold(p.id.value, other.id.value)
}

// DocumentTypeIdentifier identifies a business document type.
type DocumentTypeIdentifier struct{ id simple }

// NewDocumentTypeIdentifier creates a document type identifier.
func NewDocumentTypeIdentifier(scheme, value string) (DocumentTypeIdentifier, error) {
	id, err := newSimple(scheme, value)
	if err != nil {
		return DocumentTypeIdentifier{}, fmt.Errorf("document type: %w", err)
	}
	return DocumentTypeIdentifier{id: id}, nil
}

// ParseDocumentTypeIdentifier parses the "<scheme>::<value>" form.
func ParseDocumentTypeIdentifier(uri string) (DocumentTypeIdentifier, error) {
	id, err := parseURI(uri)
	if err != nil {
		return DocumentTypeIdentifier{}, fmt.Errorf("document type: %w", err)
	}
	return DocumentTypeIdentifier{id: id}, nil
}

// Scheme returns the identifier scheme
func (d DocumentTypeIdentifier) Scheme() string { return d.id.scheme }

// Value returns the identifier value
func (d DocumentTypeIdentifier) Value() string { return d.id.value }

// URIEncoded returns "<scheme>::<value>"
func (d DocumentTypeIdentifier) URIEncoded() string { return d.id.uri() }

// String implements fmt.Stringer
func (d DocumentTypeIdentifier) String() string { return d.id.uri() }

// ProcessIdentifier identifies a business process.
type ProcessIdentifier struct{ id simple }

// NewProcessIdentifier creates a process identifier.
func NewProcessIdentifier(scheme, value string) (ProcessIdentifier, error) {
	id, err := newSimple(scheme, value)
	if err != nil {
		return ProcessIdentifier{}, fmt.Errorf("process: %w", err)
	}
	return ProcessIdentifier{id: id}, nil
}

// ParseProcessIdentifier parses the "<scheme>::<value>" form.
func ParseProcessIdentifier(uri string) (ProcessIdentifier, error) {
	id, err := parseURI(uri)
	if err != nil {
		return ProcessIdentifier{}, fmt.Errorf("process: %w", err)
	}
	return ProcessIdentifier{id: id}, nil
}

// Scheme returns the identifier scheme
func (p ProcessIdentifier) Scheme() string { return p.id.scheme }

// Value returns the identifier value
func (p ProcessIdentifier) Value() string { return p.id.value }

// URIEncoded returns "<scheme>::<value>"
func (p ProcessIdentifier) URIEncoded() string { return p.id.uri() }

// String implements fmt.Stringer
func (p ProcessIdentifier) String() string { return p.id.uri() }

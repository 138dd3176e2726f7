package sbd

import (
	"errors"
	"fmt"

	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbdh"
)

var (
	// ErrNotHandled is returned by Module.Handle for actions or messages the
	// module does not process
	ErrNotHandled = errors.New("action not handled by SBD module")
	// ErrHandlerFault wraps a failing or panicking handler
	ErrHandlerFault = errors.New("SBD handler failed")
)

// ErrorKind classifies a processing failure
type ErrorKind string

const (
	KindParse                  ErrorKind = "parse"
	KindConfigurationMissing   ErrorKind = "configuration_missing"
	KindLookupFault            ErrorKind = "lookup_fault"
	KindLookupEmpty            ErrorKind = "lookup_empty"
	KindURLMismatch            ErrorKind = "url_mismatch"
	KindCertificateDecodeError ErrorKind = "certificate_decode"
	KindCertificateMismatch    ErrorKind = "certificate_mismatch"
	KindHandler                ErrorKind = "handler"
	KindInternal               ErrorKind = "internal"
)

// ProcessingError is the single error type returned by Module.OnReceive
type ProcessingError struct {
	CorrelationID string
	Kind          ErrorKind
	Err           error
}

func (e *ProcessingError) Error() string {
	if e.CorrelationID == "" {
		return fmt.Sprintf("SBD processing failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("SBD processing of %s failed (%s): %v", e.CorrelationID, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// kindOf maps an error to its ErrorKind
func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, sbdh.ErrInvalidDocument):
		return KindParse
	case errors.Is(err, receiver.ErrConfigurationMissing):
		return KindConfigurationMissing
	case errors.Is(err, receiver.ErrLookupFault):
		return KindLookupFault
	case errors.Is(err, receiver.ErrLookupEmpty):
		return KindLookupEmpty
	case errors.Is(err, receiver.ErrURLMismatch):
		return KindURLMismatch
	case errors.Is(err, receiver.ErrCertificateDecode):
		return KindCertificateDecodeError
	case errors.Is(err, receiver.ErrCertificateMismatch):
		return KindCertificateMismatch
	case errors.Is(err, ErrHandlerFault):
		return KindHandler
	default:
		return KindInternal
	}
}

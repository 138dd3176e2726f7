package receiver

import (
	"errors"
	"fmt"
)

// Verification errors. Every non-accepted Outcome wraps exactly one of
// these.
var (
	// ErrConfigurationMissing is returned when the lookup client or the
	// node identity is not configured
	ErrConfigurationMissing = errors.New("receiver check not configured")
	// ErrLookupFault is returned when the directory lookup fails
	ErrLookupFault = errors.New("directory lookup failed")
	// ErrLookupEmpty is returned when the lookup resolves no endpoint
	ErrLookupEmpty = errors.New("no endpoint resolved")
	// ErrMissingIdentifier is returned when the envelope lacks a receiver,
	// document type or process identifier, so no lookup can be made
	ErrMissingIdentifier = fmt.Errorf("missing identifier: %w", ErrLookupEmpty)
	// ErrURLMismatch is returned when the resolved endpoint is not this node's URL
	ErrURLMismatch = errors.New("endpoint URL mismatch")
	// ErrCertificateDecode is returned when the resolved endpoint
	// certificate is absent or cannot be decoded
	ErrCertificateDecode = errors.New("endpoint certificate cannot be decoded")
	// ErrCertificateMismatch is returned when the resolved certificate
	// serial differs from this node's certificate
	ErrCertificateMismatch = errors.New("certificate serial mismatch")
)

// OutcomeKind classifies a verification result
type OutcomeKind int

const (
	// Accepted means the document is addressed to this node
	Accepted OutcomeKind = iota
	// Rejected means the resolved endpoint is not this node, or the check
	// is not configured
	Rejected
	// LookupFailed means no endpoint could be resolved
	LookupFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case LookupFailed:
		return "lookup_failed"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the result of a receiver verification
type Outcome struct {
	Kind OutcomeKind
	// Reason is a short human-readable explanation, empty when accepted
	Reason string
	// Cause wraps one of the package sentinels, nil when accepted
	Cause error
}

func accepted() Outcome {
	return Outcome{Kind: Accepted}
}

func rejected(reason string, cause error) Outcome {
	return Outcome{Kind: Rejected, Reason: reason, Cause: cause}
}

func lookupFailed(reason string, cause error) Outcome {
	return Outcome{Kind: LookupFailed, Reason: reason, Cause: cause}
}

// Accepted reports whether the outcome is Accepted
func (o Outcome) Accepted() bool {
	return o.Kind == Accepted
}

// Err returns nil when accepted and a *VerificationError otherwise
func (o Outcome) Err() error {
	if o.Kind == Accepted {
		return nil
	}
	return &VerificationError{Kind: o.Kind, Reason: o.Reason, Err: o.Cause}
}

// Code returns a stable short label for the outcome, suitable for metrics
func (o Outcome) Code() string {
	if o.Kind == Accepted {
		return "accepted"
	}
	switch {
	case errors.Is(o.Cause, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(o.Cause, ErrMissingIdentifier):
		return "missing_identifier"
	case errors.Is(o.Cause, ErrLookupFault):
		return "lookup_fault"
	case errors.Is(o.Cause, ErrLookupEmpty):
		return "lookup_empty"
	case errors.Is(o.Cause, ErrURLMismatch):
		return "url_mismatch"
	case errors.Is(o.Cause, ErrCertificateDecode):
		return "certificate_decode"
	case errors.Is(o.Cause, ErrCertificateMismatch):
		return "certificate_mismatch"
	default:
		return o.Kind.String()
	}
}

// VerificationError is returned by Outcome.Err for non-accepted outcomes
type VerificationError struct {
	Kind   OutcomeKind
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("receiver %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("receiver %s: %s: %v", e.Kind, e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

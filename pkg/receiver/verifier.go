package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sirosfoundation/go-as2sbd/pkg/discovery"
	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
	"github.com/sirosfoundation/go-as2sbd/pkg/security"
)

// Observer is notified of every completed verification. lookupDuration is
// zero when no lookup was made.
type Observer interface {
	ObserveVerification(outcome Outcome, lookupDuration time.Duration)
}

// VerifierConfig configures a Verifier
type VerifierConfig struct {
	// Settings provides the lookup client and node identity. Required.
	Settings *Settings

	// TransportProfile is the SMP transport profile to resolve.
	// Defaults to discovery.TransportAS2V1.
	TransportProfile string

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Observer is optional
	Observer Observer
}

// Verifier checks that an inbound document was addressed to this node by
// resolving the receiver's registered endpoint and comparing it with the
// node identity held in Settings.
type Verifier struct {
	settings         *Settings
	transportProfile string
	logger           *slog.Logger
	observer         Observer
}

// NewVerifier creates a verifier
func NewVerifier(config VerifierConfig) *Verifier {
	if config.Settings == nil {
		config.Settings = NewSettings()
	}
	if config.TransportProfile == "" {
		config.TransportProfile = discovery.TransportAS2V1
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Verifier{
		settings:         config.Settings,
		transportProfile: config.TransportProfile,
		logger:           config.Logger,
		observer:         config.Observer,
	}
}

// TransportProfile returns the transport profile used for lookups
func (v *Verifier) TransportProfile() string {
	return v.transportProfile
}

// VerifyReceiver resolves the endpoint registered for the receiver and
// accepts only if its URL contains this node's URL and its certificate has
// the same serial number as this node's certificate.
//
// Any of participant, docType and process may be nil when the envelope did
// not carry it; the outcome is then LookupFailed.
func (v *Verifier) VerifyReceiver(ctx context.Context, participant *identifier.ParticipantIdentifier, docType *identifier.DocumentTypeIdentifier, process *identifier.ProcessIdentifier, correlationID string) Outcome {
	logger := v.logger.With(slog.String("correlation_id", correlationID))

	var lookupDuration time.Duration
	outcome := v.verify(ctx, logger, participant, docType, process, &lookupDuration)

	if outcome.Accepted() {
		logger.Debug("receiver endpoint verified")
	} else {
		logger.Error("receiver endpoint verification failed",
			slog.String("outcome", outcome.Kind.String()),
			slog.String("reason", outcome.Reason),
			slog.Any("error", outcome.Cause))
	}

	if v.observer != nil {
		v.observer.ObserveVerification(outcome, lookupDuration)
	}
	return outcome
}

func (v *Verifier) verify(ctx context.Context, logger *slog.Logger, participant *identifier.ParticipantIdentifier, docType *identifier.DocumentTypeIdentifier, process *identifier.ProcessIdentifier, lookupDuration *time.Duration) Outcome {
	client := v.settings.LookupClient()
	if client == nil {
		return rejected("not configured", fmt.Errorf("%w: no lookup client", ErrConfigurationMissing))
	}

	if participant == nil || docType == nil || process == nil {
		logger.Debug("cannot look up endpoint",
			slog.Bool("receiver_present", participant != nil),
			slog.Bool("document_type_present", docType != nil),
			slog.Bool("process_present", process != nil))
		return lookupFailed("missing identifier", ErrMissingIdentifier)
	}

	logger.Debug("looking up receiver endpoint",
		slog.String("receiver", participant.URIEncoded()),
		slog.String("document_type", docType.URIEncoded()),
		slog.String("process", process.URIEncoded()),
		slog.String("transport_profile", v.transportProfile),
		slog.String("directory", describeClient(client)))

	start := time.Now()
	endpoint, err := v.lookup(ctx, client, *participant, *docType, *process)
	*lookupDuration = time.Since(start)
	if err != nil {
		return lookupFailed("lookup failed", fmt.Errorf("%w: %w", ErrLookupFault, err))
	}
	if endpoint == nil {
		return lookupFailed("no endpoint resolved", ErrLookupEmpty)
	}

	if outcome, ok := v.checkURL(logger, endpoint); !ok {
		return outcome
	}
	return v.checkCertificate(logger, endpoint)
}

// lookup calls the client, converting a panic into an error
func (v *Verifier) lookup(ctx context.Context, client LookupClient, participant identifier.ParticipantIdentifier, docType identifier.DocumentTypeIdentifier, process identifier.ProcessIdentifier) (endpoint *discovery.Endpoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			endpoint = nil
			err = fmt.Errorf("lookup client panic: %v", r)
		}
	}()
	return client.LookupEndpoint(ctx, participant, docType, process, v.transportProfile)
}

func (v *Verifier) checkURL(logger *slog.Logger, endpoint *discovery.Endpoint) (Outcome, bool) {
	ownURL := v.settings.OwnEndpointURL()
	if ownURL == "" {
		return rejected("endpoint URL not configured", fmt.Errorf("%w: own endpoint URL", ErrConfigurationMissing)), false
	}

	logger.Debug("checking endpoint URL",
		slog.String("own_url", ownURL),
		slog.String("resolved_url", endpoint.EndpointURL),
		slog.Bool("resolved_active", endpoint.IsActive(time.Now())))

	// Substring match, not equality
	if !strings.Contains(endpoint.EndpointURL, ownURL) {
		return rejected("endpoint URL mismatch",
			fmt.Errorf("%w: resolved %q, expected %q", ErrURLMismatch, endpoint.EndpointURL, ownURL)), false
	}
	return Outcome{}, true
}

func (v *Verifier) checkCertificate(logger *slog.Logger, endpoint *discovery.Endpoint) Outcome {
	ownCert := v.settings.OwnCertificate()
	if ownCert == nil {
		return rejected("certificate not configured", fmt.Errorf("%w: own certificate", ErrConfigurationMissing))
	}

	resolved, err := security.ParseCertificateString(endpoint.Certificate)
	if err != nil {
		return rejected("endpoint certificate cannot be decoded", fmt.Errorf("%w: %w", ErrCertificateDecode, err))
	}
	if resolved == nil {
		return rejected("no certificate in resolved endpoint", ErrCertificateDecode)
	}

	logger.Debug("checking endpoint certificate",
		slog.String("resolved_subject", resolved.Subject.String()),
		slog.String("resolved_serial", security.SerialHex(resolved)),
		slog.String("own_serial", security.SerialHex(ownCert)))

	if !security.SameSerialNumber(ownCert, resolved) {
		return rejected("certificate serial mismatch",
			fmt.Errorf("%w: resolved %s, expected %s", ErrCertificateMismatch,
				security.SerialHex(resolved), security.SerialHex(ownCert)))
	}
	return accepted()
}

func describeClient(client LookupClient) string {
	if s, ok := client.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", client)
}

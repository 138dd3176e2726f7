package sbd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbdh"
)

// ActionStore is the pipeline stage at which received messages are stored.
// The module only acts on this stage.
const ActionStore = "store"

// MessageKind identifies the type of message travelling the pipeline
type MessageKind string

const (
	// KindAS2 is an AS2 business message
	KindAS2 MessageKind = "as2"
	// KindMDN is an AS2 message disposition notification
	KindMDN MessageKind = "mdn"
)

// Message is a message handed to the module by the pipeline
type Message struct {
	// ID is the AS2 Message-ID, used as correlation id
	ID   string
	Kind MessageKind
	// From and To are the AS2-From and AS2-To names
	From string
	To   string
	// Data is the decrypted, verified payload
	Data []byte
}

// Observer is notified of every processed document. err is nil on success
// and a *ProcessingError otherwise.
type Observer interface {
	ObserveReceive(err error, duration time.Duration)
}

// ModuleConfig configures a Module
type ModuleConfig struct {
	// Settings controls whether the receiver check runs. Required.
	Settings *receiver.Settings

	// Verifier performs the receiver check. Defaults to a verifier over
	// Settings.
	Verifier *receiver.Verifier

	// Registry holds the handlers documents are dispatched to
	Registry *Registry

	// Logger defaults to slog.Default()
	Logger *slog.Logger

	// Observer is optional
	Observer Observer
}

// Module validates inbound Standard Business Documents and dispatches them
// to the registered handlers.
type Module struct {
	settings *receiver.Settings
	verifier *receiver.Verifier
	registry *Registry
	logger   *slog.Logger
	observer Observer
}

// NewModule creates a module. A warning is logged when no handlers are
// registered, since documents would then not be processed at all.
func NewModule(config ModuleConfig) *Module {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Settings == nil {
		config.Settings = receiver.NewSettings()
	}
	if config.Verifier == nil {
		config.Verifier = receiver.NewVerifier(receiver.VerifierConfig{
			Settings: config.Settings,
			Logger:   config.Logger,
		})
	}
	if config.Registry == nil {
		config.Registry = NewRegistry()
	}

	m := &Module{
		settings: config.Settings,
		verifier: config.Verifier,
		registry: config.Registry,
		logger:   config.Logger.With(slog.String("component", "sbd")),
		observer: config.Observer,
	}

	if m.registry.Len() == 0 {
		m.logger.Warn("no SBD handlers registered, incoming documents will not be handled")
	} else {
		m.logger.Debug("SBD handlers registered", slog.Int("count", m.registry.Len()))
	}
	return m
}

// CanHandle reports whether the module processes the action for msg. Only
// AS2 messages at the store stage are accepted.
func (m *Module) CanHandle(action string, msg Message) bool {
	return action == ActionStore && msg.Kind == KindAS2
}

// Handle processes msg if CanHandle accepts it, and returns ErrNotHandled
// otherwise.
func (m *Module) Handle(ctx context.Context, action string, msg Message) error {
	if !m.CanHandle(action, msg) {
		return ErrNotHandled
	}
	return m.OnReceive(ctx, msg.Data, msg.ID)
}

// OnReceive parses raw as a Standard Business Document, verifies the
// receiver when the check is enabled, and dispatches the document to all
// handlers in order. Any returned error is a *ProcessingError.
func (m *Module) OnReceive(ctx context.Context, raw []byte, correlationID string) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = m.fail(correlationID, KindInternal, fmt.Errorf("unexpected panic: %v", r))
		}
		if m.observer != nil {
			m.observer.ObserveReceive(err, time.Since(start))
		}
	}()

	doc, err := sbdh.Parse(raw)
	if err != nil {
		return m.fail(correlationID, KindParse, err)
	}
	if correlationID == "" {
		correlationID = doc.InstanceIdentifier()
	}
	logger := m.logger.With(slog.String("correlation_id", correlationID))

	if !m.settings.ReceiverCheckEnabled() {
		logger.Info("endpoint checks are disabled")
	} else {
		ids := sbdh.ExtractIdentifiers(doc)
		outcome := m.verifier.VerifyReceiver(ctx, ids.Receiver, ids.DocumentType, ids.Process, correlationID)
		if verr := outcome.Err(); verr != nil {
			return m.fail(correlationID, kindOf(verr), verr)
		}
	}

	return m.dispatch(ctx, logger, doc, correlationID)
}

func (m *Module) dispatch(ctx context.Context, logger *slog.Logger, doc *sbdh.Document, correlationID string) error {
	handlers := m.registry.Handlers()
	if len(handlers) == 0 {
		logger.Warn("no SBD handlers registered, document not handled")
		return nil
	}

	ctx = WithCorrelationID(ctx, correlationID)
	for i, h := range handlers {
		if err := invoke(ctx, h, doc); err != nil {
			logger.Error("SBD handler failed",
				slog.Int("handler", i),
				slog.String("handler_type", fmt.Sprintf("%T", h)),
				slog.Any("error", err))
			return m.fail(correlationID, KindHandler, fmt.Errorf("%w: %w", ErrHandlerFault, err))
		}
	}

	logger.Debug("SBD dispatched", slog.Int("handlers", len(handlers)))
	return nil
}

// invoke calls h, converting a panic into an error
func invoke(ctx context.Context, h Handler, doc *sbdh.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.HandleIncomingSBD(ctx, doc)
}

func (m *Module) fail(correlationID string, kind ErrorKind, err error) error {
	if kind == KindParse {
		m.logger.Error("failed to interpret document as Standard Business Document",
			slog.String("correlation_id", correlationID),
			slog.Any("error", err))
	}
	return &ProcessingError{CorrelationID: correlationID, Kind: kind, Err: err}
}

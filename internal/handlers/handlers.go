// Package handlers provides the SBD handlers the receiver can be configured
// with and builds the handler registry from configuration.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sirosfoundation/go-as2sbd/internal/config"
	"github.com/sirosfoundation/go-as2sbd/internal/storage"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbd"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbdh"
)

// ErrStoreRequired is returned when an archive handler is configured
// without a store
var ErrStoreRequired = errors.New("archive handler requires a store")

// Build creates the handler registry from configuration, in the configured
// order
func Build(cfgs []config.HandlerConfig, store storage.Store, logger *slog.Logger) (*sbd.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry := sbd.NewRegistry()
	for i, hc := range cfgs {
		switch hc.Type {
		case config.HandlerLog:
			registry.Register(NewLogHandler(logger, parseLevel(hc.Level)))
		case config.HandlerArchive:
			if store == nil {
				return nil, fmt.Errorf("handlers[%d]: %w", i, ErrStoreRequired)
			}
			registry.Register(NewArchiveHandler(store, logger))
		default:
			return nil, fmt.Errorf("handlers[%d]: unknown handler type %q", i, hc.Type)
		}
	}
	return registry, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogHandler writes a summary line for every document
type LogHandler struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogHandler creates a log handler emitting at level
func NewLogHandler(logger *slog.Logger, level slog.Level) *LogHandler {
	return &LogHandler{logger: logger, level: level}
}

func (h *LogHandler) HandleIncomingSBD(ctx context.Context, doc *sbdh.Document) error {
	ids := sbdh.ExtractIdentifiers(doc)
	attrs := []slog.Attr{
		slog.String("correlation_id", sbd.CorrelationID(ctx)),
		slog.String("instance_identifier", ids.InstanceIdentifier),
		slog.String("sender", stringOrEmpty(ids.Sender)),
		slog.String("receiver", stringOrEmpty(ids.Receiver)),
		slog.String("document_type", stringOrEmpty(ids.DocumentType)),
		slog.String("process", stringOrEmpty(ids.Process)),
	}
	if el := doc.BusinessMessage(); el != nil {
		attrs = append(attrs, slog.String("business_message", el.Tag))
	}
	h.logger.LogAttrs(ctx, h.level, "SBD received", attrs...)
	return nil
}

// ArchiveHandler stores every document and its metadata. A document whose
// correlation id is already archived is skipped, so AS2 retransmissions
// are idempotent.
type ArchiveHandler struct {
	store  storage.Store
	logger *slog.Logger
}

// NewArchiveHandler creates an archive handler over store
func NewArchiveHandler(store storage.Store, logger *slog.Logger) *ArchiveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveHandler{store: store, logger: logger}
}

func (h *ArchiveHandler) HandleIncomingSBD(ctx context.Context, doc *sbdh.Document) error {
	correlationID := sbd.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = doc.InstanceIdentifier()
	}
	logger := h.logger.With(slog.String("correlation_id", correlationID))

	existing, err := h.store.GetDocumentByCorrelationID(ctx, correlationID)
	if err != nil {
		return fmt.Errorf("looking up archived document: %w", err)
	}
	if existing != nil {
		logger.Info("document already archived", slog.String("document_id", existing.ID))
		return nil
	}

	data := doc.Raw()
	if data == nil {
		if data, err = doc.Marshal(); err != nil {
			return fmt.Errorf("serializing document: %w", err)
		}
	}

	envelope := &storage.EnvelopeData{CorrelationID: correlationID, Data: data}
	envelopeID, err := h.store.StoreEnvelope(ctx, envelope)
	if err != nil {
		return fmt.Errorf("storing envelope: %w", err)
	}

	ids := sbdh.ExtractIdentifiers(doc)
	record := &storage.Document{
		CorrelationID:      correlationID,
		InstanceIdentifier: ids.InstanceIdentifier,
		Sender:             stringOrEmpty(ids.Sender),
		Receiver:           stringOrEmpty(ids.Receiver),
		DocumentType:       stringOrEmpty(ids.DocumentType),
		Process:            stringOrEmpty(ids.Process),
		EnvelopeID:         envelopeID,
		Size:               int64(len(data)),
		Checksum:           envelope.Checksum,
	}
	if el := doc.BusinessMessage(); el != nil {
		record.BusinessMessage = el.Tag
	}
	if created := doc.CreationDateAndTime(); !created.IsZero() {
		record.CreatedAt = &created
	}

	if err := h.store.CreateDocument(ctx, record); err != nil {
		if delErr := h.store.DeleteEnvelope(ctx, envelopeID); delErr != nil {
			logger.Warn("failed to remove orphaned envelope",
				slog.String("envelope_id", envelopeID),
				slog.Any("error", delErr))
		}
		if errors.Is(err, storage.ErrDuplicate) {
			logger.Info("document archived concurrently")
			return nil
		}
		return fmt.Errorf("recording document: %w", err)
	}

	logger.Debug("document archived",
		slog.String("document_id", record.ID),
		slog.String("envelope_id", envelopeID),
		slog.Int64("size", record.Size))
	return nil
}

func stringOrEmpty[T fmt.Stringer](v *T) string {
	if v == nil {
		return ""
	}
	return (*v).String()
}

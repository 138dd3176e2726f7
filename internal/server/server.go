// Package server provides the HTTP server for the SBD receiver.
//
// The server exposes the following API surfaces:
//
// # Inbound Endpoint
//
// POST {basePath} - Receives an inbound Standard Business Document. The
// body is the envelope as handed over by the AS2 stack, already decrypted
// and signature-verified. AS2 message headers (Message-ID, AS2-From,
// AS2-To) are carried through to the processing module.
//
// # Archive API (when a store is configured)
//
//   - GET /api/documents               - List archived documents
//   - GET /api/documents/{id}          - Get document metadata
//   - GET /api/documents/{id}/envelope - Download the raw envelope
//
// # Administration (when server.adminToken is set, bearer token auth)
//
//   - GET /admin/receiver-check - Report whether the receiver check is on
//   - PUT /admin/receiver-check - Switch the receiver check on or off
//
// # Health & Metrics
//
//   - GET /health  - Liveness probe
//   - GET /ready   - Readiness probe (checks the store)
//   - GET /metrics - Prometheus metrics (if enabled)
package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-as2sbd/internal/config"
	"github.com/sirosfoundation/go-as2sbd/internal/storage"
	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbd"
	"github.com/sirosfoundation/go-as2sbd/pkg/transport"
)

// AS2 message headers
const (
	headerMessageID = "Message-ID"
	headerAS2From   = "AS2-From"
	headerAS2To     = "AS2-To"
)

// Options holds the server's collaborators
type Options struct {
	// Module processes inbound documents. Required.
	Module *sbd.Module

	// Settings is exposed on the admin API
	Settings *receiver.Settings

	// Store backs the archive API and the readiness probe. Optional.
	Store storage.Store

	// Gatherer serves /metrics when metrics are enabled
	Gatherer prometheus.Gatherer

	// Logger defaults to slog.Default()
	Logger *slog.Logger
}

// Server is the SBD receiver HTTP server
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	httpSrv  *http.Server
	module   *sbd.Module
	settings *receiver.Settings
	store    storage.Store
	gatherer prometheus.Gatherer
}

// New creates a new server
func New(cfg *config.Config, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settings == nil {
		opts.Settings = receiver.NewSettings()
	}

	s := &Server{
		config:   cfg,
		logger:   opts.Logger,
		module:   opts.Module,
		settings: opts.Settings,
		store:    opts.Store,
		gatherer: opts.Gatherer,
	}

	// Set up HTTP routes
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	if cfg.Server.TLS.Enabled {
		s.httpSrv.TLSConfig = transport.ServerTLSConfig(nil)
	}

	return s
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting server", "addr", addr, "tls", s.config.Server.TLS.Enabled)
	if s.config.Server.TLS.Enabled {
		return s.httpSrv.ListenAndServeTLS(
			s.config.Server.TLS.CertFile,
			s.config.Server.TLS.KeyFile,
		)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	basePath := strings.TrimSuffix(s.config.Server.BasePath, "/")
	if basePath == "" {
		basePath = "/as2"
	}

	// Health check (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	// Inbound documents (AS2 transport security is handled upstream)
	mux.HandleFunc("POST "+basePath, s.handleInbound)

	if s.store != nil {
		mux.HandleFunc("GET /api/documents", s.handleListDocuments)
		mux.HandleFunc("GET /api/documents/{documentID}", s.handleGetDocument)
		mux.HandleFunc("GET /api/documents/{documentID}/envelope", s.handleGetEnvelope)
	}

	if s.config.Server.AdminToken != "" {
		mux.HandleFunc("GET /admin/receiver-check", s.withAdmin(s.handleGetReceiverCheck))
		mux.HandleFunc("PUT /admin/receiver-check", s.withAdmin(s.handleSetReceiverCheck))
	}

	if s.config.Observability.Metrics.Enabled && s.gatherer != nil {
		mux.Handle("GET "+s.config.Observability.Metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Middleware

// withAdmin checks the static admin bearer token
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Server.AdminToken)) != 1 {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.jsonError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.jsonError(w, "database not ready", http.StatusServiceUnavailable)
			return
		}
	}
	s.jsonResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// Inbound handler

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	msg := sbd.Message{
		ID:   messageID(r.Header.Get(headerMessageID)),
		Kind: sbd.KindAS2,
		From: r.Header.Get(headerAS2From),
		To:   r.Header.Get(headerAS2To),
	}

	s.logger.Info("received SBD",
		"message_id", msg.ID,
		"as2_from", msg.From,
		"as2_to", msg.To,
		"content-type", r.Header.Get("Content-Type"),
		"content-length", r.ContentLength,
	)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.jsonError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		s.jsonError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	msg.Data = data

	if err := s.module.Handle(r.Context(), sbd.ActionStore, msg); err != nil {
		status := statusFor(err)
		resp := map[string]string{"error": err.Error(), "messageId": msg.ID}
		var perr *sbd.ProcessingError
		if errors.As(err, &perr) {
			resp["kind"] = string(perr.Kind)
		}
		s.jsonResponse(w, resp, status)
		return
	}

	s.jsonResponse(w, map[string]string{"status": "accepted", "messageId": msg.ID}, http.StatusOK)
}

// messageID strips the angle brackets of an RFC 5322 message id and
// generates one when absent
func messageID(header string) string {
	id := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(header), "<"), ">")
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// statusFor maps processing failures to HTTP status codes
func statusFor(err error) int {
	var perr *sbd.ProcessingError
	if !errors.As(err, &perr) {
		return http.StatusInternalServerError
	}
	switch perr.Kind {
	case sbd.KindParse:
		return http.StatusBadRequest
	case sbd.KindURLMismatch, sbd.KindCertificateMismatch, sbd.KindCertificateDecodeError, sbd.KindLookupEmpty:
		return http.StatusForbidden
	case sbd.KindLookupFault:
		return http.StatusBadGateway
	case sbd.KindConfigurationMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Archive handlers

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := &storage.DocumentFilter{
		Receiver:     query.Get("receiver"),
		DocumentType: query.Get("documentType"),
	}
	if since := query.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			s.jsonError(w, "invalid since parameter", http.StatusBadRequest)
			return
		}
		filter.Since = &t
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 50 // Default limit
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	docs, err := s.store.ListDocuments(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list documents", "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []*storage.Document{}
	}

	s.jsonResponse(w, map[string]interface{}{
		"documents": docs,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	}, http.StatusOK)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, doc, http.StatusOK)
}

func (s *Server) handleGetEnvelope(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}

	envelope, err := s.store.GetEnvelope(r.Context(), doc.EnvelopeID)
	if err != nil {
		s.logger.Error("failed to get envelope", "document_id", doc.ID, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if envelope == nil {
		s.jsonError(w, "envelope not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Length", strconv.Itoa(len(envelope.Data)))
	w.Header().Set("Digest", contentDigest(envelope.Data))
	w.WriteHeader(http.StatusOK)
	w.Write(envelope.Data)
}

// contentDigest formats an RFC 3230 instance digest
func contentDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha-256=" + base64.StdEncoding.EncodeToString(sum[:])
}

func (s *Server) lookupDocument(w http.ResponseWriter, r *http.Request) (*storage.Document, bool) {
	id := r.PathValue("documentID")

	doc, err := s.store.GetDocument(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get document", "document_id", id, "error", err)
		s.jsonError(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if doc == nil {
		s.jsonError(w, "document not found", http.StatusNotFound)
		return nil, false
	}
	return doc, true
}

// Admin handlers

type receiverCheckState struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleGetReceiverCheck(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, receiverCheckState{Enabled: s.settings.ReceiverCheckEnabled()}, http.StatusOK)
}

func (s *Server) handleSetReceiverCheck(w http.ResponseWriter, r *http.Request) {
	var req receiverCheckState
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.settings.SetReceiverCheckEnabled(req.Enabled)
	s.logger.Info("receiver check switched", "enabled", req.Enabled)
	s.jsonResponse(w, req, http.StatusOK)
}

// Helper functions

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, message string, status int) {
	s.jsonResponse(w, map[string]string{"error": message}, status)
}

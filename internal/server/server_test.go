package server

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-as2sbd/internal/config"
	"github.com/sirosfoundation/go-as2sbd/internal/handlers"
	"github.com/sirosfoundation/go-as2sbd/internal/metrics"
	"github.com/sirosfoundation/go-as2sbd/internal/storage"
	"github.com/sirosfoundation/go-as2sbd/internal/storage/memory"
	"github.com/sirosfoundation/go-as2sbd/pkg/discovery"
	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbd"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbdh"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func buildEnvelope(t *testing.T, instanceID string) string {
	t.Helper()
	rcv, err := identifier.NewParticipantIdentifier(identifier.SchemeParticipant, "0088:receiver")
	require.NoError(t, err)
	sender, err := identifier.NewParticipantIdentifier(identifier.SchemeParticipant, "0088:sender")
	require.NoError(t, err)
	docType, err := identifier.NewDocumentTypeIdentifier(identifier.SchemeDocumentType, "urn:example::Invoice##1")
	require.NoError(t, err)
	process, err := identifier.NewProcessIdentifier(identifier.SchemeProcess, "urn:example:process")
	require.NoError(t, err)

	doc, err := sbdh.NewBuilder().
		WithSender(sender).
		WithReceiver(rcv).
		WithDocumentType(docType).
		WithProcess(process).
		WithInstanceIdentifier(instanceID).
		WithBusinessMessage([]byte(`<Invoice xmlns="urn:example"><ID>1</ID></Invoice>`)).
		Build()
	require.NoError(t, err)

	data, err := doc.Marshal()
	require.NoError(t, err)
	return string(data)
}

type failingLookup struct{}

func (failingLookup) LookupEndpoint(context.Context, identifier.ParticipantIdentifier, identifier.DocumentTypeIdentifier, identifier.ProcessIdentifier, string) (*discovery.Endpoint, error) {
	return nil, errors.New("SMP unreachable")
}

type testEnv struct {
	settings *receiver.Settings
	store    *memory.Store
	registry *prometheus.Registry
	handler  http.Handler
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Observability.Metrics.Enabled = true
	cfg.Server.AdminToken = "s3cret"
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{
		settings: receiver.NewSettings(),
		store:    memory.NewStore(),
		registry: prometheus.NewRegistry(),
	}
	m := metrics.New(env.registry)

	registry, err := handlers.Build([]config.HandlerConfig{{Type: config.HandlerArchive}}, env.store, quietLogger())
	require.NoError(t, err)

	module := sbd.NewModule(sbd.ModuleConfig{
		Settings: env.settings,
		Registry: registry,
		Logger:   quietLogger(),
		Observer: m,
	})

	srv := New(cfg, Options{
		Module:   module,
		Settings: env.settings,
		Store:    env.store,
		Gatherer: env.registry,
		Logger:   quietLogger(),
	})
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInboundAcceptedAndArchived(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(buildEnvelope(t, "doc-1")))
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set(headerMessageID, "<msg-1@sender.example.com>")
	req.Header.Set(headerAS2From, "sender")
	req.Header.Set(headerAS2To, "receiver")

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "msg-1@sender.example.com", body["messageId"])

	doc, err := env.store.GetDocumentByCorrelationID(context.Background(), "msg-1@sender.example.com")
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "doc-1", doc.InstanceIdentifier)
}

func TestInboundErrors(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*receiver.Settings)
		body       string
		wantStatus int
		wantKind   string
	}{
		{
			name:       "not an SBD",
			body:       "<Invoice/>",
			wantStatus: http.StatusBadRequest,
			wantKind:   string(sbd.KindParse),
		},
		{
			name:       "check enabled without directory",
			setup:      func(s *receiver.Settings) { s.SetReceiverCheckEnabled(true) },
			wantStatus: http.StatusServiceUnavailable,
			wantKind:   string(sbd.KindConfigurationMissing),
		},
		{
			name: "directory unreachable",
			setup: func(s *receiver.Settings) {
				s.SetReceiverCheckEnabled(true)
				s.SetLookupClient(failingLookup{})
			},
			wantStatus: http.StatusBadGateway,
			wantKind:   string(sbd.KindLookupFault),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.setup != nil {
				tt.setup(env.settings)
			}
			body := tt.body
			if body == "" {
				body = buildEnvelope(t, "doc-1")
			}

			rec := env.do(httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantKind, decode(t, rec)["kind"])

			docs, err := env.store.ListDocuments(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, docs, "nothing archived on failure")
		})
	}
}

func TestInboundBodyTooLarge(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.MaxBodyBytes = 16 })

	rec := env.do(httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(buildEnvelope(t, "doc-1"))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestInboundCustomBasePath(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.BasePath = "/inbound/" })

	rec := env.do(httptest.NewRequest(http.MethodPost, "/inbound", strings.NewReader(buildEnvelope(t, "doc-1"))))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(buildEnvelope(t, "doc-2"))))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMessageID(t *testing.T) {
	assert.Equal(t, "abc@example.com", messageID(" <abc@example.com> "))
	assert.Equal(t, "plain", messageID("plain"))
	assert.Len(t, messageID(""), 36)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind sbd.ErrorKind
		want int
	}{
		{sbd.KindParse, http.StatusBadRequest},
		{sbd.KindURLMismatch, http.StatusForbidden},
		{sbd.KindCertificateMismatch, http.StatusForbidden},
		{sbd.KindCertificateDecodeError, http.StatusForbidden},
		{sbd.KindLookupEmpty, http.StatusForbidden},
		{sbd.KindLookupFault, http.StatusBadGateway},
		{sbd.KindConfigurationMissing, http.StatusServiceUnavailable},
		{sbd.KindHandler, http.StatusInternalServerError},
		{sbd.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(&sbd.ProcessingError{Kind: tt.kind, Err: errors.New("x")}))
		})
	}
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}

func TestArchiveAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, id := range []string{"a", "b", "c"} {
		req := httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(buildEnvelope(t, "doc-"+id)))
		req.Header.Set(headerMessageID, "msg-"+id)
		require.Equal(t, http.StatusOK, env.do(req).Code)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/documents?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []storage.Document `json:"documents"`
		Limit     int                `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Documents, 2)
	assert.Equal(t, 2, list.Limit)

	id := list.Documents[0].ID
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode(t, rec)["id"])

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+id+"/envelope", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/xml", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Digest"), "sha-256="))
	_, err := sbdh.Parse(rec.Body.Bytes())
	assert.NoError(t, err)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/documents?since=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminReceiverCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/admin/receiver-check", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/admin/receiver-check", strings.NewReader(`{"enabled":true}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.settings.ReceiverCheckEnabled())

	req = httptest.NewRequest(http.MethodGet, "/admin/receiver-check", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["enabled"])

	req = httptest.NewRequest(http.MethodPut, "/admin/receiver-check", strings.NewReader(`nope`))
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.AdminToken = "" })

	req := httptest.NewRequest(http.MethodGet, "/admin/receiver-check", nil)
	req.Header.Set("Authorization", "Bearer ")
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(buildEnvelope(t, "doc-1")))).Code)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `as2sbd_documents_total{kind="",result="ok"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Observability.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestEnvelopeDownloadIsVerbatim(t *testing.T) {
	env := newTestEnv(t, nil)
	body := buildEnvelope(t, "doc-digest")
	req := httptest.NewRequest(http.MethodPost, "/as2", strings.NewReader(body))
	req.Header.Set(headerMessageID, "msg-digest")
	require.Equal(t, http.StatusOK, env.do(req).Code)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []storage.Document `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Documents, 1)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/documents/"+list.Documents[0].ID+"/envelope", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, body, rec.Body.String())

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, "sha-256="+base64.StdEncoding.EncodeToString(sum[:]), rec.Header().Get("Digest"))
}

func TestContentDigest(t *testing.T) {
	// sha-256 of the empty string
	assert.Equal(t, "sha-256=47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=", contentDigest(nil))
}

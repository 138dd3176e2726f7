package receiver

import (
	"context"
	"crypto/x509"
	"sync"

	"github.com/sirosfoundation/go-as2sbd/pkg/discovery"
	"github.com/sirosfoundation/go-as2sbd/pkg/identifier"
)

// LookupClient resolves the endpoint a participant has registered for a
// document type and process under a transport profile. A nil endpoint with
// a nil error means nothing is registered.
type LookupClient interface {
	LookupEndpoint(ctx context.Context, participant identifier.ParticipantIdentifier, documentType identifier.DocumentTypeIdentifier, process identifier.ProcessIdentifier, transportProfile string) (*discovery.Endpoint, error)
}

// Settings holds the node identity and the receiver check configuration.
// It is safe for concurrent use; it is normally populated once at startup
// and only read while messages are processed.
type Settings struct {
	mu             sync.RWMutex
	checkEnabled   bool
	lookupClient   LookupClient
	ownEndpointURL string
	ownCertificate *x509.Certificate
}

// NewSettings returns settings with the receiver check disabled and no
// node identity.
func NewSettings() *Settings {
	return &Settings{}
}

// ReceiverCheckEnabled reports whether inbound documents are verified
// against the directory. Disabled by default.
func (s *Settings) ReceiverCheckEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkEnabled
}

// SetReceiverCheckEnabled turns the receiver check on or off
func (s *Settings) SetReceiverCheckEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkEnabled = enabled
}

// LookupClient returns the directory lookup client, or nil
func (s *Settings) LookupClient() LookupClient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookupClient
}

// SetLookupClient sets the directory lookup client. nil clears it.
func (s *Settings) SetLookupClient(client LookupClient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookupClient = client
}

// OwnEndpointURL returns this access point's published URL
func (s *Settings) OwnEndpointURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownEndpointURL
}

// SetOwnEndpointURL sets this access point's published URL
func (s *Settings) SetOwnEndpointURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownEndpointURL = url
}

// OwnCertificate returns this access point's certificate, or nil
func (s *Settings) OwnCertificate() *x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownCertificate
}

// SetOwnCertificate sets this access point's certificate
func (s *Settings) SetOwnCertificate(cert *x509.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownCertificate = cert
}

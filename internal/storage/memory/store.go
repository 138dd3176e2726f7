// Package memory implements storage interfaces in process memory.
//
// Nothing survives a restart; use it for development and tests.
package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirosfoundation/go-as2sbd/internal/storage"
)

// Store implements storage.Store in memory
type Store struct {
	mu            sync.RWMutex
	documents     map[string]*storage.Document
	byCorrelation map[string]string
	envelopes     map[string]*storage.EnvelopeData
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		documents:     make(map[string]*storage.Document),
		byCorrelation: make(map[string]string),
		envelopes:     make(map[string]*storage.EnvelopeData),
	}
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateDocument(_ context.Context, doc *storage.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCorrelation[doc.CorrelationID]; ok {
		return fmt.Errorf("%w: %s", storage.ErrDuplicate, doc.CorrelationID)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}

	stored := *doc
	s.documents[doc.ID] = &stored
	s.byCorrelation[doc.CorrelationID] = doc.ID
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return nil, nil
	}
	out := *doc
	return &out, nil
}

func (s *Store) GetDocumentByCorrelationID(ctx context.Context, correlationID string) (*storage.Document, error) {
	s.mu.RLock()
	id, ok := s.byCorrelation[correlationID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return s.GetDocument(ctx, id)
}

func (s *Store) ListDocuments(_ context.Context, filter *storage.DocumentFilter) ([]*storage.Document, error) {
	s.mu.RLock()
	var docs []*storage.Document
	for _, doc := range s.documents {
		if filter != nil {
			if filter.Receiver != "" && doc.Receiver != filter.Receiver {
				continue
			}
			if filter.DocumentType != "" && doc.DocumentType != filter.DocumentType {
				continue
			}
			if filter.Since != nil && doc.ReceivedAt.Before(*filter.Since) {
				continue
			}
		}
		out := *doc
		docs = append(docs, &out)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].ReceivedAt.After(docs[j].ReceivedAt)
	})

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(docs) {
				return nil, nil
			}
			docs = docs[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(docs) {
			docs = docs[:filter.Limit]
		}
	}
	return docs, nil
}

func (s *Store) StoreEnvelope(_ context.Context, envelope *storage.EnvelopeData) (string, error) {
	if envelope.Checksum == "" {
		hash := sha256.Sum256(envelope.Data)
		envelope.Checksum = hex.EncodeToString(hash[:])
	}
	envelope.ID = uuid.NewString()

	stored := *envelope
	stored.Data = append([]byte(nil), envelope.Data...)

	s.mu.Lock()
	s.envelopes[envelope.ID] = &stored
	s.mu.Unlock()
	return envelope.ID, nil
}

func (s *Store) GetEnvelope(_ context.Context, id string) (*storage.EnvelopeData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env, ok := s.envelopes[id]
	if !ok {
		return nil, nil
	}
	out := *env
	out.Data = append([]byte(nil), env.Data...)
	return &out, nil
}

func (s *Store) DeleteEnvelope(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.envelopes, id)
	s.mu.Unlock()
	return nil
}

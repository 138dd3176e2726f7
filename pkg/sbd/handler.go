package sbd

import (
	"context"

	"github.com/sirosfoundation/go-as2sbd/pkg/sbdh"
)

// Handler processes a validated Standard Business Document
type Handler interface {
	HandleIncomingSBD(ctx context.Context, doc *sbdh.Document) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, doc *sbdh.Document) error

// HandleIncomingSBD calls f(ctx, doc)
func (f HandlerFunc) HandleIncomingSBD(ctx context.Context, doc *sbdh.Document) error {
	return f(ctx, doc)
}

type correlationKey struct{}

// WithCorrelationID returns a context carrying the correlation id of the
// document being processed
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id set by the module before
// dispatch, or "" outside of a dispatch
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// Registry is an ordered list of handlers. It is populated at startup and
// must not be modified once documents are being processed.
type Registry struct {
	handlers []Handler
}

// NewRegistry creates a registry holding the given handlers in order.
// nil handlers are skipped.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register appends a handler
func (r *Registry) Register(h Handler) {
	if h == nil {
		return
	}
	r.handlers = append(r.handlers, h)
}

// Len returns the number of registered handlers
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.handlers)
}

// Handlers returns the handlers in registration order
func (r *Registry) Handlers() []Handler {
	if r == nil {
		return nil
	}
	return append([]Handler(nil), r.handlers...)
}

// Package metrics exposes Prometheus metrics for the SBD receiver.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sirosfoundation/go-as2sbd/pkg/receiver"
	"github.com/sirosfoundation/go-as2sbd/pkg/sbd"
)

// Metrics implements receiver.Observer and sbd.Observer. A nil *Metrics
// records nothing.
type Metrics struct {
	// Receiver check results by outcome and code
	Verifications *prometheus.CounterVec

	// Receiver check latency, including the directory lookup
	VerifyLatency prometheus.Histogram

	// Processed documents by result and error kind
	Documents *prometheus.CounterVec

	// Overall processing latency
	ProcessLatency prometheus.Histogram
}

var (
	_ receiver.Observer = (*Metrics)(nil)
	_ sbd.Observer      = (*Metrics)(nil)
)

// New creates the metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "as2sbd_receiver_verifications_total",
			Help: "Receiver checks by outcome and result code",
		}, []string{"outcome", "code"}),

		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "as2sbd_receiver_verification_duration_seconds",
			Help:    "Duration of receiver checks including the SMP lookup",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "as2sbd_documents_total",
			Help: "Processed Standard Business Documents by result and error kind",
		}, []string{"result", "kind"}), // result: "ok", "error"

		ProcessLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "as2sbd_document_processing_duration_seconds",
			Help:    "Duration of document processing from parse to last handler",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// ObserveVerification records a receiver check result
func (m *Metrics) ObserveVerification(outcome receiver.Outcome, d time.Duration) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome.Kind.String(), outcome.Code()).Inc()
		m.VerifyLatency.Observe(d.Seconds())
	}
}

// ObserveReceive records a processed document
func (m *Metrics) ObserveReceive(err error, d time.Duration) {
	if m == nil {
		return
	}
	result, kind := "ok", ""
	if err != nil {
		result, kind = "error", string(sbd.KindInternal)
		var perr *sbd.ProcessingError
		if errors.As(err, &perr) {
			kind = string(perr.Kind)
		}
	}
	m.Documents.WithLabelValues(result, kind).Inc()
	m.ProcessLatency.Observe(d.Seconds())
}

package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes recorded on settle_runs_total.
const (
	OutcomeOK          = "ok"
	OutcomeImbalanced  = "imbalanced"
	OutcomeNotFound    = "not_found"
	OutcomeUnsettled   = "unsettled"
	OutcomeSourceError = "source_error"
)

// Metrics are the Prometheus collectors updated by SettleService.
type Metrics struct {
	Runs           *prometheus.CounterVec
	Transactions   prometheus.Counter
	Published      prometheus.Counter
	SourceDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settle",
			Name:      "runs_total",
			Help:      "Settlement runs by outcome.",
		}, []string{"outcome"}),
		Transactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "settle",
			Name:      "transactions_total",
			Help:      "Payment transactions emitted by successful runs.",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "settle",
			Name:      "payment_requests_published_total",
			Help:      "Payment-request messages published to AMQP.",
		}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "settle",
			Name:      "source_duration_seconds",
			Help:      "Latency of ledger source calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.Runs, m.Transactions, m.Published, m.SourceDuration)
	}
	return m
}

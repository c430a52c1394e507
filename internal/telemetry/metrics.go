package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors shared across the pipeline.
// A single instance is constructed at startup and passed down explicitly.
type Metrics struct {
	ProviderRequests *prometheus.CounterVec
	CacheEvents      *prometheus.CounterVec
	RunDuration      prometheus.Histogram
	Verdicts         *prometheus.CounterVec
}

// Outcome labels for ProviderRequests.
const (
	OutcomeSuccess     = "success"
	OutcomeFailure     = "failure"
	OutcomeRateLimited = "rate_limited"
)

// Event labels for CacheEvents.
const (
	CacheHit           = "hit"
	CacheMiss          = "miss"
	CacheStaleFallback = "stale_fallback"
	CacheCoalesced     = "coalesced"
	CacheEvicted       = "evicted"
	CacheRemoteHit     = "remote_hit"
)

// NewMetrics registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terminal",
			Name:      "provider_requests_total",
			Help:      "Provider fetch attempts by outcome.",
		}, []string{"provider", "outcome"}),
		CacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terminal",
			Name:      "cache_events_total",
			Help:      "Cache layer events by data kind.",
		}, []string{"kind", "event"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "terminal",
			Name:      "run_duration_seconds",
			Help:      "End-to-end analysis run duration.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		Verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "terminal",
			Name:      "verdicts_total",
			Help:      "Composite verdicts emitted by label.",
		}, []string{"verdict"}),
	}

	reg.MustRegister(m.ProviderRequests, m.CacheEvents, m.RunDuration, m.Verdicts)
	return m
}

// NewTestMetrics returns metrics bound to a throwaway registry.
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

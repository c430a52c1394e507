package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ProviderRequests.WithLabelValues("yahoo", OutcomeSuccess).Inc()
	m.ProviderRequests.WithLabelValues("yahoo", OutcomeSuccess).Inc()
	m.ProviderRequests.WithLabelValues("yahoo", OutcomeRateLimited).Inc()
	m.CacheEvents.WithLabelValues("price_history", CacheHit).Add(3)
	m.Verdicts.WithLabelValues("BUY").Inc()
	m.RunDuration.Observe(0.25)

	assert.Equal(t, 2.0, counterValue(t, m.ProviderRequests.WithLabelValues("yahoo", OutcomeSuccess)))
	assert.Equal(t, 1.0, counterValue(t, m.ProviderRequests.WithLabelValues("yahoo", OutcomeRateLimited)))
	assert.Equal(t, 3.0, counterValue(t, m.CacheEvents.WithLabelValues("price_history", CacheHit)))
	assert.Equal(t, 1.0, counterValue(t, m.Verdicts.WithLabelValues("BUY")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, len(families))
	for i, f := range families {
		names[i] = f.GetName()
	}
	assert.Contains(t, names, "terminal_provider_requests_total")
	assert.Contains(t, names, "terminal_cache_events_total")
	assert.Contains(t, names, "terminal_run_duration_seconds")
	assert.Contains(t, names, "terminal_verdicts_total")
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

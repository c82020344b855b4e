package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registeredNames(t *testing.T, collectors []prometheus.Collector) map[string]bool {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors...)
	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestOutboxMetricsAreExported(t *testing.T) {
	OutboxLag.Set(3)
	RabbitPublishRetries.Inc()

	names := registeredNames(t, outboxCollectors())
	assert.True(t, names["afterschool_outbox_lag_seconds"])
	assert.True(t, names["afterschool_rabbit_publish_retries_total"])
	assert.Equal(t, 3.0, testutil.ToFloat64(OutboxLag))
}

func TestAPIMetricsExcludeOutbox(t *testing.T) {
	RequestsTotal.WithLabelValues("/api/lessons", "200", "GET").Inc()
	StoreOpDuration.WithLabelValues("lessons.list").Observe(0.01)

	names := registeredNames(t, apiCollectors())
	assert.True(t, names["afterschool_requests_total"])
	assert.False(t, names["afterschool_outbox_lag_seconds"])
	assert.False(t, names["afterschool_rabbit_publish_retries_total"])
}

package config_test

import (
	"testing"
	"time"

	"github.com/robertarktes/afterschool-bookings/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "MONGODB_URI", "MONGO_URI", "MONGO_DB", "LESSONS_CACHE_TTL", "CANCEL_TRANSACTIONAL", "RATE_LIMIT_PER_MINUTE", "OTEL_SAMPLE_RATIO", "METRICS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "afterSchoolDB", cfg.MongoDatabase)
	assert.Equal(t, 30*time.Second, cfg.LessonsCacheTTL)
	assert.Equal(t, 100, cfg.RateLimitPerMinute)
	assert.False(t, cfg.CancelTransactional)
	assert.Equal(t, 1.0, cfg.OTelSampleRatio)
	assert.Equal(t, ":9091", cfg.MetricsAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MONGODB_URI", "")
	t.Setenv("MONGO_URI", "mongodb://mongo:27017")
	t.Setenv("CANCEL_TRANSACTIONAL", "true")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://mongo:27017", cfg.MongoURI)
	assert.True(t, cfg.CancelTransactional)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
}

func TestLoad_Malformed(t *testing.T) {
	t.Setenv("MONGO_TIMEOUT", "ten seconds")

	_, err := config.Load()
	assert.ErrorContains(t, err, "MONGO_TIMEOUT")
}

func TestLoad_SampleRatioOutOfRange(t *testing.T) {
	t.Setenv("OTEL_SAMPLE_RATIO", "1.5")

	_, err := config.Load()
	assert.ErrorContains(t, err, "OTEL_SAMPLE_RATIO")
}

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	MongoURI            string
	MongoDatabase       string
	MongoTimeout        time.Duration
	RedisAddr           string
	LessonsCacheTTL     time.Duration
	IdempotencyTTL      time.Duration
	RateLimitPerMinute  int
	RabbitURL           string
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	CancelTransactional bool
	ImagesDir           string
	LogLevel            string
	OTLPEndpoint        string
	OTelSampleRatio     float64
	MetricsAddr         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getenv("PORT", "3000"),
		MongoURI:      getenv("MONGODB_URI", getenv("MONGO_URI", "mongodb://localhost:27017")),
		MongoDatabase: getenv("MONGO_DB", "afterSchoolDB"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		ImagesDir:     getenv("IMAGES_DIR", "public/images"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		MetricsAddr:   getenv("METRICS_ADDR", ":9091"),
	}

	var err error
	if cfg.MongoTimeout, err = duration("MONGO_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.LessonsCacheTTL, err = duration("LESSONS_CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL, err = duration("IDEMPOTENCY_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = duration("OUTBOX_POLL_INTERVAL", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = integer("RATE_LIMIT_PER_MINUTE", 100); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = integer("OUTBOX_BATCH_SIZE", 50); err != nil {
		return nil, err
	}
	if cfg.CancelTransactional, err = boolean("CANCEL_TRANSACTIONAL", false); err != nil {
		return nil, err
	}
	if cfg.OTelSampleRatio, err = fraction("OTEL_SAMPLE_RATIO", 1); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return d, nil
}

func integer(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return n, nil
}

func boolean(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parse %s", key)
	}
	return b, nil
}

// fraction parses a value in [0, 1].
func fraction(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	if f < 0 || f > 1 {
		return 0, errors.Newf("%s must be between 0 and 1, got %v", key, f)
	}
	return f, nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signinguard/internal/travel"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"SIGNINGUARD_ADDR", "TRAVEL_ACCEPTABLE_SPEED_KMH", "TRAVEL_LOOKBACK_COUNT",
		"DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS", "GEOIP_CITY_DB", "LOG_FORMAT",
		"GEO_CACHE_TTL", "GEO_CACHE_BREAKER_COOLDOWN", "TRACE_EXPORTER", "TRACE_SAMPLE_RATIO",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, travel.DefaultOptions(), cfg.Travel.Options())
	assert.Empty(t, cfg.Postgres.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 24*time.Hour, cfg.Redis.GeoCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, "none", cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRatio)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("TRAVEL_ACCEPTABLE_SPEED_KMH", "950")
	t.Setenv("TRAVEL_LOOKBACK_COUNT", "2")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, kafka-2:9092,,kafka-1:9092 ")
	t.Setenv("GEO_CACHE_TTL", "1h")
	t.Setenv("REDIS_POOL_SIZE", "not-a-number")

	cfg := FromEnv()

	assert.Equal(t, 950.0, cfg.Travel.AcceptableSpeedKmh)
	assert.Equal(t, 2, cfg.Travel.LookbackCount)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, time.Hour, cfg.Redis.GeoCacheTTL)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "invalid numbers fall back to the default")
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsDetectorOptions(t *testing.T) {
	t.Setenv("TRAVEL_LOOKBACK_COUNT", "3")
	t.Setenv("TRAVEL_ACCEPTABLE_SPEED_KMH", "-1")

	err := FromEnv().Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback")
}

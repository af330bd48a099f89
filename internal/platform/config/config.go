package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"signinguard/internal/travel"
	platformstrings "signinguard/pkg/platform/strings"
)

// Server captures process configuration. It is read once at startup.
type Server struct {
	Addr            string
	JWTSigningKey   string
	JWTIssuer       string
	JWTAudience     string
	AdminAPIToken   string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	Travel   TravelConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	GeoIP    GeoIPConfig
	Kafka    KafkaConfig
	Breaker  BreakerConfig
	Tracing  TracingConfig
}

// TravelConfig holds the impossible-travel detector options.
type TravelConfig struct {
	AcceptableSpeedKmh float64
	LookbackCount      int
}

// Options converts to the detector's option set.
func (c TravelConfig) Options() travel.Options {
	return travel.Options{
		AcceptableSpeedKmh: c.AcceptableSpeedKmh,
		LookbackCount:      c.LookbackCount,
	}
}

// PostgresConfig is empty-URL disabled.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// GeoCacheTTL is how long IP lookups stay cached.
	GeoCacheTTL time.Duration
	// SignInRetention expires idle per-subject sign-in sets.
	SignInRetention time.Duration
}

type GeoIPConfig struct {
	CityDBPath string
}

type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	Partitions        int32
	ReplicationFactor int16
}

// TracingConfig selects the span exporter and sampling ratio.
type TracingConfig struct {
	Exporter    string
	ServiceName string
	SampleRatio float64
}

// BreakerConfig tunes the circuit breaker guarding the geo cache.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

// FromEnv builds a Server config from environment variables so main stays
// lean. Unparseable numbers fall back to their defaults.
func FromEnv() Server {
	return Server{
		Addr:            envString("SIGNINGUARD_ADDR", ":8080"),
		JWTSigningKey:   envString("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:       envString("JWT_ISSUER", "signinguard"),
		JWTAudience:     envString("JWT_AUDIENCE", "signinguard"),
		AdminAPIToken:   os.Getenv("ADMIN_API_TOKEN"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),

		Travel: TravelConfig{
			AcceptableSpeedKmh: envFloat("TRAVEL_ACCEPTABLE_SPEED_KMH", travel.DefaultAcceptableSpeedKmh),
			LookbackCount:      envInt("TRAVEL_LOOKBACK_COUNT", travel.DefaultLookbackCount),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:             os.Getenv("REDIS_URL"),
			PoolSize:        envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:    envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:     envDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:     envDuration("REDIS_READ_TIMEOUT", 500*time.Millisecond),
			WriteTimeout:    envDuration("REDIS_WRITE_TIMEOUT", 500*time.Millisecond),
			GeoCacheTTL:     envDuration("GEO_CACHE_TTL", 24*time.Hour),
			SignInRetention: envDuration("SIGNIN_RETENTION", 90*24*time.Hour),
		},
		GeoIP: GeoIPConfig{
			CityDBPath: os.Getenv("GEOIP_CITY_DB"),
		},
		Kafka: KafkaConfig{
			Brokers:           platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:        envString("KAFKA_AUDIT_TOPIC", "signinguard.audit"),
			Partitions:        int32(envInt("KAFKA_AUDIT_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Breaker: BreakerConfig{
			FailureThreshold: envInt("GEO_CACHE_BREAKER_FAILURES", 5),
			SuccessThreshold: envInt("GEO_CACHE_BREAKER_SUCCESSES", 3),
			Cooldown:         envDuration("GEO_CACHE_BREAKER_COOLDOWN", 30*time.Second),
		},
		Tracing: TracingConfig{
			Exporter:    envString("TRACE_EXPORTER", "none"),
			ServiceName: envString("OTEL_SERVICE_NAME", "signinguard"),
			SampleRatio: envFloat("TRACE_SAMPLE_RATIO", 1),
		},
	}
}

// Validate reports configuration the service cannot start with.
func (s Server) Validate() error {
	var errs []error
	if err := s.Travel.Options().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("travel: %w", err))
	}
	if strings.TrimSpace(s.JWTSigningKey) == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must not be empty"))
	}
	if s.Tracing.SampleRatio < 0 || s.Tracing.SampleRatio > 1 {
		errs = append(errs, errors.New("TRACE_SAMPLE_RATIO must be between 0 and 1"))
	}
	if s.Kafka.Partitions < 1 || s.Kafka.ReplicationFactor < 1 {
		errs = append(errs, errors.New("kafka partitions and replication must be positive"))
	}
	return errors.Join(errs...)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return d
}

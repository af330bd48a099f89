package locator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"signinguard/internal/geo"
	"signinguard/pkg/platform/circuit"
)

var (
	cacheLookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "signinguard_geo_cache_lookup_duration_ms",
		Help:    "Latency of Redis geolocation cache reads in milliseconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
	})
	cacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signinguard_geo_cache_results_total",
		Help: "Geolocation cache outcomes by result (hit, miss, error, bypass)",
	}, []string{"result"})
)

const geoCacheKeyPrefix = "geo:ip:"

// Locator is the capability the cache decorates.
type Locator interface {
	Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error)
}

// cachedLocation distinguishes "resolved to nothing" from "not cached".
type cachedLocation struct {
	Found    bool          `json:"found"`
	Location *geo.Location `json:"location,omitempty"`
}

// RedisCache memoises lookups (including unresolved results) in Redis.
// Redis failures never fail a lookup: they fall through to the inner locator
// and feed a circuit breaker. While the breaker is open Redis is not touched
// at all, except for one trial lookup per breaker cooldown.
type RedisCache struct {
	client  *redis.Client
	next    Locator
	ttl     time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type RedisCacheOption func(*RedisCache)

func WithCacheLogger(logger *slog.Logger) RedisCacheOption {
	return func(c *RedisCache) {
		c.logger = logger
	}
}

func WithCacheBreaker(b *circuit.Breaker) RedisCacheOption {
	return func(c *RedisCache) {
		if b != nil {
			c.breaker = b
		}
	}
}

// NewRedisCache wraps next with a Redis-backed cache.
func NewRedisCache(client *redis.Client, next Locator, ttl time.Duration, opts ...RedisCacheOption) *RedisCache {
	c := &RedisCache{
		client:  client,
		next:    next,
		ttl:     ttl,
		breaker: circuit.New("geo-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RedisCache) Locate(ctx context.Context, addr netip.Addr) (*geo.Location, error) {
	if !addr.IsValid() {
		return nil, nil
	}
	key := geoCacheKeyPrefix + addr.Unmap().String()

	if !c.breaker.Allow() {
		cacheResults.WithLabelValues("bypass").Inc()
		return c.next.Locate(ctx, addr)
	}
	cached, hit, reachable := c.read(ctx, key)
	if hit {
		return cached.Location, nil
	}

	loc, err := c.next.Locate(ctx, addr)
	if err != nil {
		return nil, err
	}
	if reachable {
		c.write(ctx, key, cachedLocation{Found: loc != nil, Location: loc})
	}
	return loc, nil
}

// read reports a cache hit and whether Redis answered at all.
func (c *RedisCache) read(ctx context.Context, key string) (cachedLocation, bool, bool) {
	start := time.Now()
	raw, err := c.client.Get(ctx, key).Bytes()
	cacheLookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	if errors.Is(err, redis.Nil) {
		c.breaker.RecordSuccess()
		cacheResults.WithLabelValues("miss").Inc()
		return cachedLocation{}, false, true
	}
	if err != nil {
		c.recordFailure(ctx, err)
		cacheResults.WithLabelValues("error").Inc()
		return cachedLocation{}, false, false
	}
	c.breaker.RecordSuccess()

	var cached cachedLocation
	if err := json.Unmarshal(raw, &cached); err != nil {
		cacheResults.WithLabelValues("error").Inc()
		return cachedLocation{}, false, true
	}
	cacheResults.WithLabelValues("hit").Inc()
	return cached, true, true
}

func (c *RedisCache) write(ctx context.Context, key string, value cachedLocation) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.recordFailure(ctx, err)
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "geo cache recovered", "breaker", c.breaker.Name())
	}
}

func (c *RedisCache) recordFailure(ctx context.Context, err error) {
	// A canceled request says nothing about Redis health.
	if ctx.Err() != nil {
		return
	}
	_, change := c.breaker.RecordFailure()
	if c.logger == nil {
		return
	}
	if change.Opened {
		c.logger.WarnContext(ctx, "geo cache degraded, bypassing redis", "breaker", c.breaker.Name(), "error", err)
		return
	}
	c.logger.DebugContext(ctx, "geo cache error", "error", err)
}

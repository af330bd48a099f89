package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"signinguard/internal/geo/locator"
	jwttoken "signinguard/internal/jwt_token"
	"signinguard/internal/platform/config"
	httpmetrics "signinguard/internal/platform/metrics"
	"signinguard/internal/platform/postgres"
	platformredis "signinguard/internal/platform/redis"
	"signinguard/internal/platform/tracing"
	signinhandler "signinguard/internal/signin/handler"
	signinmetrics "signinguard/internal/signin/metrics"
	signinservice "signinguard/internal/signin/service"
	signinstore "signinguard/internal/signin/store"
	"signinguard/internal/travel"
	"signinguard/pkg/platform/audit"
	auditpublisher "signinguard/pkg/platform/audit/publisher"
	auditkafka "signinguard/pkg/platform/audit/publishers/kafka"
	auditmemory "signinguard/pkg/platform/audit/store/memory"
	auditpostgres "signinguard/pkg/platform/audit/store/postgres"
	"signinguard/pkg/platform/circuit"
	"signinguard/pkg/platform/httputil"
	adminmw "signinguard/pkg/platform/middleware/admin"
	authmw "signinguard/pkg/platform/middleware/auth"
	"signinguard/pkg/platform/middleware/metadata"
	"signinguard/pkg/platform/middleware/request"
	"signinguard/pkg/platform/middleware/requesttime"
)

const auditBufferSize = 1024

// app holds every long-lived resource so shutdown can release them in
// reverse order of construction.
type app struct {
	cfg     config.Server
	log     *slog.Logger
	db      *sql.DB
	redis   *platformredis.Client
	handler *signinhandler.Handler
	metrics *httpmetrics.HTTP
	closers []func()
}

func buildApp(ctx context.Context, cfg config.Server, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.connect(ctx); err != nil {
		return nil, err
	}

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	loc, err := a.buildLocator()
	if err != nil {
		return nil, err
	}
	detector, err := travel.Select(store, loc, travel.WithOptions(cfg.Travel.Options()))
	if err != nil {
		return nil, fmt.Errorf("build travel detector: %w", err)
	}
	if _, disabled := detector.(travel.Disabled); disabled {
		log.Warn("impossible travel detection disabled, no geolocation source configured")
	}

	tp, err := tracing.New(cfg.Tracing)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	a.onClose(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	})

	auditStore, err := a.buildAuditStore(ctx)
	if err != nil {
		return nil, err
	}
	publisher := auditpublisher.NewPublisher(auditStore,
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithLogger(log),
	)
	a.onClose(func() { _ = publisher.Close() })

	opts := []signinservice.Option{
		signinservice.WithLogger(log),
		signinservice.WithMetrics(signinmetrics.New(prometheus.DefaultRegisterer)),
		signinservice.WithAuditPublisher(publisher),
		signinservice.WithTracerProvider(tp),
	}
	if loc != nil {
		opts = append(opts, signinservice.WithLocator(loc))
	}
	svc, err := signinservice.New(store, detector, opts...)
	if err != nil {
		return nil, fmt.Errorf("build sign-in service: %w", err)
	}

	a.handler = signinhandler.New(svc, log)
	a.metrics = httpmetrics.New(prometheus.DefaultRegisterer)
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	db, err := postgres.Open(ctx, a.cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		a.db = db
		a.onClose(func() { _ = db.Close() })
	}

	client, err := platformredis.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	if client != nil {
		a.redis = client
		a.onClose(func() { _ = client.Close() })
	}
	return nil
}

// buildStore prefers Postgres, then Redis, then process memory.
func (a *app) buildStore(ctx context.Context) (signinstore.Store, error) {
	switch {
	case a.db != nil:
		s := signinstore.NewPostgresStore(a.db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure sign-in schema: %w", err)
		}
		a.log.Info("sign-in store selected", "backend", "postgres")
		return s, nil
	case a.redis != nil:
		a.log.Info("sign-in store selected", "backend", "redis")
		return signinstore.NewRedisStore(a.redis.Client, signinstore.WithRetention(a.cfg.Redis.SignInRetention)), nil
	default:
		a.log.Warn("sign-in store selected", "backend", "memory")
		return signinstore.NewMemoryStore(), nil
	}
}

// buildLocator returns nil when no City database is configured, which
// disables detection rather than guessing locations.
func (a *app) buildLocator() (locator.Locator, error) {
	if a.cfg.GeoIP.CityDBPath == "" {
		return nil, nil
	}
	mm, err := locator.OpenMaxMind(a.cfg.GeoIP.CityDBPath)
	if err != nil {
		return nil, err
	}
	a.onClose(func() { _ = mm.Close() })
	if a.redis == nil {
		return mm, nil
	}

	breaker := circuit.New("geo-cache",
		circuit.WithFailureThreshold(a.cfg.Breaker.FailureThreshold),
		circuit.WithSuccessThreshold(a.cfg.Breaker.SuccessThreshold),
		circuit.WithCooldown(a.cfg.Breaker.Cooldown),
	)
	return locator.NewRedisCache(a.redis.Client, mm, a.cfg.Redis.GeoCacheTTL,
		locator.WithCacheLogger(a.log),
		locator.WithCacheBreaker(breaker),
	), nil
}

// buildAuditStore picks the audit sink: Kafka, then Postgres, then memory.
func (a *app) buildAuditStore(ctx context.Context) (audit.Store, error) {
	if len(a.cfg.Kafka.Brokers) > 0 {
		producer, err := auditkafka.New(a.cfg.Kafka.Brokers, a.cfg.Kafka.AuditTopic, auditkafka.WithLogger(a.log))
		if err != nil {
			return nil, err
		}
		a.onClose(producer.Close)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := producer.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("kafka ping failed: %w", err)
		}
		if err := producer.EnsureTopic(pingCtx, a.cfg.Kafka.Partitions, a.cfg.Kafka.ReplicationFactor); err != nil {
			return nil, fmt.Errorf("ensure audit topic: %w", err)
		}
		a.log.Info("audit sink selected", "backend", "kafka", "topic", a.cfg.Kafka.AuditTopic)
		return producer, nil
	}
	if a.db != nil {
		s := auditpostgres.New(a.db)
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure audit schema: %w", err)
		}
		a.log.Info("audit sink selected", "backend", "postgres")
		return s, nil
	}
	a.log.Info("audit sink selected", "backend", "memory")
	return auditmemory.NewInMemoryStore(), nil
}

// Router mounts the public API under /v1 (service JWT) and operator
// endpoints under /admin (shared admin token).
func (a *app) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(a.metrics.Middleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	validator := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(a.cfg.JWTSigningKey, a.cfg.JWTIssuer, a.cfg.JWTAudience),
	)
	r.Route("/v1", func(r chi.Router) {
		r.Use(authmw.RequireAuth(validator, a.log))
		a.handler.Register(r)
	})
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(a.cfg.AdminAPIToken, a.log))
		a.handler.RegisterAdmin(r)
	})
	return r
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	if a.db != nil {
		checks["postgres"] = "ok"
		if err := a.db.PingContext(ctx); err != nil {
			checks["postgres"] = err.Error()
			healthy = false
		}
	}
	if a.redis != nil {
		checks["redis"] = "ok"
		if err := a.redis.Health(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}
	httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

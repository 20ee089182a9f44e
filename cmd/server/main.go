package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"iam/internal/credential/events"
	credentialHandler "iam/internal/credential/handler"
	"iam/internal/credential/metrics"
	"iam/internal/credential/providers"
	"iam/internal/credential/providers/worldid"
	"iam/internal/credential/service"
	"iam/internal/credential/signer"
	"iam/internal/credential/store"
	"iam/internal/credential/tracer"
	"iam/internal/platform/config"
	"iam/internal/platform/database"
	"iam/internal/platform/health"
	"iam/internal/platform/kafka/producer"
	"iam/internal/platform/logger"
	"iam/internal/platform/redis"
	"iam/migrations"
	"iam/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(cfg config.Server, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing iam",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	healthHandler := health.New(cfg.Environment)
	stores, err := buildStores(ctx, cfg, log, healthHandler)
	if err != nil {
		return err
	}
	defer stores.close()

	kafkaProducer, err := buildProducer(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := kafkaProducer.Close(shutdownTimeout); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}()
	healthHandler.RegisterCheck("kafka", func(ctx context.Context) error {
		if !kafkaProducer.Healthy(ctx) {
			return errors.New("kafka brokers unreachable")
		}
		return nil
	})

	resolver := signer.NewEthereumResolver()
	registry, err := providers.NewRegistry(
		worldid.New(resolver,
			worldid.WithEndpoint(cfg.Credential.WorldIDEndpoint),
			worldid.WithTimeout(cfg.Credential.ProviderHTTPTimeout),
			worldid.WithLogger(log),
		),
	)
	if err != nil {
		return fmt.Errorf("register providers: %w", err)
	}

	opts := []service.Option{
		service.WithResolver(resolver),
		service.WithPublisher(events.NewPublisher(kafkaProducer, cfg.Kafka.Topic)),
		service.WithMetrics(metrics.New()),
		service.WithTracer(tracer.NewOTel(nil)),
		service.WithLogger(log),
	}
	if stores.claims != nil {
		opts = append(opts, service.WithClaimStore(stores.claims))
	}
	svc, err := service.New(registry, stores.stamps, []byte(cfg.Credential.StampHashKey), opts...)
	if err != nil {
		return fmt.Errorf("create credential service: %w", err)
	}

	router := newRouter(cfg, log, credentialHandler.New(svc, log), healthHandler)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr, "providers", svc.Providers())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if stores.redisClient != nil {
		g.Go(func() error {
			return stores.redisClient.RunPoolStats(gctx, poolStatsInterval)
		})
	}
	return g.Wait()
}

type storeSet struct {
	stamps      service.StampStore
	claims      service.ClaimStore
	redisClient *redis.Client
	closers     []func()
}

func (s *storeSet) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildStores picks Postgres when DATABASE_URL is set and layers Redis claims
// on top when REDIS_URL is set. Without either, stamps live in memory.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger, h *health.Handler) (*storeSet, error) {
	set := &storeSet{stamps: store.NewInMemoryStore()}

	pool, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if pool != nil {
		set.closers = append(set.closers, func() { _ = pool.Close() })
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			set.close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		h.RegisterCheck("postgres", pool.Health)
		if err := pool.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			log.Warn("database metrics not registered", "error", err)
		}
		set.stamps = store.NewPostgresStore(pool.DB())
		log.Info("using postgres stamp store")
	} else {
		log.Warn("DATABASE_URL not set, stamps are kept in memory")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		set.close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		set.closers = append(set.closers, func() { _ = rc.Close() })
		h.RegisterCheck("redis", rc.Health)
		// claims never lapse, matching the postgres claim table
		set.claims = store.NewRedisClaims(rc.Client, 0)
		set.redisClient = rc
		log.Info("using redis claim store")
	}
	return set, nil
}

// eventProducer is the producer surface main needs beyond publishing.
type eventProducer interface {
	events.Producer
	Close(timeout time.Duration) error
	Healthy(ctx context.Context) bool
}

func buildProducer(cfg config.Server, log *slog.Logger) (eventProducer, error) {
	if cfg.Kafka.Brokers == "" {
		log.Warn("KAFKA_BROKERS not set, verification events are dropped")
		return producer.NewNoopProducer(), nil
	}
	p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return p, nil
}

func newRouter(cfg config.Server, log *slog.Logger, credentials *credentialHandler.Handler, h *health.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(request.Latency(request.NewMetrics(prometheus.DefaultRegisterer)))

	h.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(cfg.RequestTimeout))
		r.Use(request.ContentTypeJSON)
		credentials.Register(r)
	})
	return r
}

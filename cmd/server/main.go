package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"nidhi/internal/ledger"
	ledgerHandler "nidhi/internal/ledger/handler"
	"nidhi/internal/notification"
	notificationHandler "nidhi/internal/notification/handler"
	"nidhi/internal/platform/config"
	"nidhi/internal/platform/httpserver"
	"nidhi/internal/platform/logger"
	"nidhi/internal/platform/metrics"
	"nidhi/internal/platform/postgres"
	platformredis "nidhi/internal/platform/redis"
	"nidhi/internal/platform/token"
	"nidhi/internal/proposal"
	proposalHandler "nidhi/internal/proposal/handler"
	"nidhi/internal/tier"
	httptransport "nidhi/internal/transport/http"
	"nidhi/internal/utilization"
	utilizationHandler "nidhi/internal/utilization/handler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nidhi: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)
	m := metrics.New()

	// Storage. An empty database URL selects the in-memory stores so the
	// binary runs standalone.
	var (
		db                *sql.DB
		tierStore         tier.Store
		ledgerStore       ledger.Store
		proposalStore     proposal.Store
		utilizationStore  utilization.Store
		notificationStore notification.Store
		markerStore       notification.MarkerStore
	)
	if cfg.DatabaseURL != "" {
		var err error
		db, err = postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		tierStore = tier.NewPostgresStore(db)
		ledgerStore = ledger.NewPostgresStore(db)
		proposalStore = proposal.NewPostgresStore(db)
		utilizationStore = utilization.NewPostgresStore(db)
		notificationStore = notification.NewPostgresStore(db)
		markerStore = notification.NewPostgresMarkerStore(db)
		log.Info("storage: postgres")
	} else {
		memTiers := tier.NewInMemoryStore()
		tierStore = memTiers
		ledgerStore = ledger.NewInMemoryStore()
		proposalStore = proposal.NewInMemoryStore()
		utilizationStore = utilization.NewInMemoryStore()
		notificationStore = notification.NewInMemoryStore()
		markerStore = notification.NewInMemoryMarkerStore()
		log.Warn("storage: in-memory, data will not survive a restart")

		ministry, state, district, agency, err := tier.SeedHierarchy(memTiers, "Demo State", "Demo District", "Demo Agency")
		if err != nil {
			return fmt.Errorf("seed tier hierarchy: %w", err)
		}
		log.Info("seeded tier hierarchy",
			"ministry", ministry.ID.String(),
			"state", state.ID.String(),
			"district", district.ID.String(),
			"agency", agency.ID.String(),
		)
	}

	// Redis, when configured, takes over notification dedupe markers so
	// multiple instances share one idempotency domain.
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		markerStore = notification.NewRedisMarkerStore(redisClient.Client)
		log.Info("notification markers: redis")
	}

	// External publishing. Without brokers the worker drains against a no-op.
	var publisher notification.Publisher = notification.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub, err := notification.NewKafkaPublisher(cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaPub.Close()
		publisher = kafkaPub
		log.Info("notification publisher: kafka", "brokers", cfg.KafkaBrokers)
	}

	// Services.
	notifier := notification.NewService(notificationStore, markerStore,
		notification.WithLogger(log),
		notification.WithMetrics(m),
	)
	proposals := proposal.NewService(proposalStore, tierStore,
		proposal.WithSink(notifier),
		proposal.WithLogger(log),
		proposal.WithMetrics(m),
	)
	engine := ledger.NewEngine(ledgerStore, tierStore,
		ledger.WithProposalChecker(proposals),
		ledger.WithSink(notifier),
		ledger.WithLogger(log),
		ledger.WithMetrics(m),
	)
	ucs := utilization.NewService(utilizationStore, engine,
		utilization.WithTiers(tierStore),
		utilization.WithSink(notifier),
		utilization.WithLogger(log),
	)
	// The gate is applied after construction: the engine resolves
	// allocations for the utilization service, which in turn gates the
	// engine's releases.
	ledger.WithUtilizationGate(ucs)(engine)
	notification.WithPendingCounter(proposals)(notifier)

	worker := notification.NewWorker(notifier.Outbox(), publisher, log)

	validator := token.NewValidator(cfg.JWTSigningKey)
	healthChecks := map[string]httptransport.HealthChecker{}
	if db != nil {
		healthChecks["postgres"] = dbHealth{db}
	}
	if redisClient != nil {
		healthChecks["redis"] = redisClient
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Validator:      validator,
		RequestTimeout: cfg.RequestTimeout,
		Handlers: []httptransport.Registrar{
			ledgerHandler.New(engine, log),
			proposalHandler.New(proposals, log),
			utilizationHandler.New(ucs, log),
			notificationHandler.New(notifier, log),
		},
		HealthChecks: healthChecks,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

// dbHealth adapts *sql.DB to the router's health check interface.
type dbHealth struct{ db *sql.DB }

func (h dbHealth) Health(ctx context.Context) error { return h.db.PingContext(ctx) }

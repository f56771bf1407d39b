// Package app assembles the pass service and its collaborators from
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"memberpass/internal/assets/sqlstore"
	assetsmemory "memberpass/internal/assets/memory"
	"memberpass/internal/audit"
	"memberpass/internal/audit/outbox"
	"memberpass/internal/ledger"
	ledgermemory "memberpass/internal/ledger/memory"
	ledgerpostgres "memberpass/internal/ledger/postgres"
	passmetrics "memberpass/internal/pass/metrics"
	"memberpass/internal/pass/service"
	"memberpass/internal/pass/store"
	"memberpass/internal/platform/config"
	"memberpass/internal/platform/database"
	"memberpass/internal/platform/health"
	"memberpass/internal/platform/kafka"
	"memberpass/internal/platform/kafka/producer"
	"memberpass/internal/platform/kvstore"
	kvbadger "memberpass/internal/platform/kvstore/badger"
	kvmemory "memberpass/internal/platform/kvstore/memory"
	kvpostgres "memberpass/internal/platform/kvstore/postgres"
	kvredis "memberpass/internal/platform/kvstore/redis"
	redisclient "memberpass/internal/platform/redis"
	id "memberpass/pkg/domain"
	"memberpass/pkg/platform/circuit"
	"memberpass/pkg/platform/tracer"
)

const poolStatsInterval = 15 * time.Second

// App owns every long-lived dependency of the server.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Service  *service.Service
	Ledger   ledger.Ledger
	Health   *health.Handler
	Audit    *audit.InMemoryStore

	publisher *audit.Publisher
	stop      context.CancelFunc
	closers   []func() error
}

// New builds the application. On error every dependency opened so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	a := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		Health:   health.New(cfg.Server.Environment),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bgCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	a.stop = stop

	var pool *database.Pool
	if cfg.NeedsDatabase() {
		pool, err = database.New(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.Health.RegisterCheck("postgres", pool.Health)
	}

	kv, err := a.openKeyedStore(ctx, bgCtx, cfg, pool)
	if err != nil {
		return nil, err
	}

	switch cfg.Storage.LedgerBackend {
	case config.BackendPostgres:
		a.Ledger = ledgerpostgres.New(pool.DB())
	default:
		a.Ledger = ledgermemory.New()
	}

	assets, err := a.openAssetRegistry(cfg)
	if err != nil {
		return nil, err
	}

	if err := a.openAudit(cfg, pool); err != nil {
		return nil, err
	}

	opts := []service.Option{
		service.WithLogger(logger),
		service.WithAuditPublisher(a.publisher),
		service.WithMetrics(passmetrics.New(a.Registry)),
		service.WithTracer(tracer.NewOTel()),
		service.WithPlatformName(cfg.Pass.PlatformName),
		service.WithMaxEditionAttempts(cfg.Pass.MaxEditionAttempts),
	}
	if cfg.Pass.Treasury != "" {
		treasury, err := id.ParsePrincipalID(cfg.Pass.Treasury)
		if err != nil {
			return nil, fmt.Errorf("parse TREASURY: %w", err)
		}
		opts = append(opts, service.WithTreasury(treasury))
	}

	passStore := store.NewCredentialStore(kv)
	var credentials service.CredentialStore = passStore
	if cfg.Pass.CredentialCacheTTL > 0 {
		credentials = store.NewCachedCredentials(passStore, cfg.Pass.CredentialCacheTTL)
	}

	a.Service = service.New(store.NewConfigStore(kv), credentials, a.Ledger, assets, opts...)

	logger.InfoContext(ctx, "memberpass initialized",
		"store_backend", cfg.Storage.StoreBackend,
		"ledger_backend", cfg.Storage.LedgerBackend,
		"asset_backend", cfg.Storage.AssetBackend,
		"kafka_audit", cfg.Kafka.Brokers != "",
	)
	return a, nil
}

func (a *App) openKeyedStore(ctx, bgCtx context.Context, cfg *config.Config, pool *database.Pool) (kvstore.Store, error) {
	switch cfg.Storage.StoreBackend {
	case config.BackendPostgres:
		return kvpostgres.New(pool.DB()), nil

	case config.BackendRedis:
		client, err := redisclient.New(ctx, cfg.Redis, redisclient.NewPoolMetrics(a.Registry))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.Health.RegisterCheck("redis", client.Health)
		go recordPoolStats(bgCtx, client)
		return kvredis.New(client.Client, kvredis.WithPrefix(cfg.Redis.KeyPrefix)), nil

	case config.BackendBadger:
		db, err := kvbadger.Open(
			kvbadger.WithDir(filepath.Join(cfg.Storage.DataDir, "badger")),
			kvbadger.WithLogger(a.Logger),
		)
		if err != nil {
			return nil, fmt.Errorf("open badger store: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.Health.RegisterCheck("badger", db.Health)
		return db, nil

	default:
		return kvmemory.New(), nil
	}
}

func (a *App) openAssetRegistry(cfg *config.Config) (service.AssetRegistry, error) {
	if cfg.Storage.AssetBackend != config.BackendSQLite {
		return assetsmemory.New(), nil
	}
	registry, err := sqlstore.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open asset registry: %w", err)
	}
	a.closers = append(a.closers, registry.Close)
	a.Health.RegisterCheck("assets", registry.Health)
	return registry, nil
}

// openAudit keeps recent events in memory and, with brokers configured,
// also publishes them to Kafka. With a database the Kafka leg goes through
// the audit outbox; without one it publishes directly behind a breaker.
func (a *App) openAudit(cfg *config.Config, pool *database.Pool) error {
	a.Audit = audit.NewInMemoryStore()
	var sink audit.Store = a.Audit

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.Config{
			Brokers:         cfg.Kafka.Brokers,
			Acks:            cfg.Kafka.Acks,
			Retries:         cfg.Kafka.Retries,
			DeliveryTimeout: cfg.Kafka.DeliveryTimeout,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		a.Health.RegisterCheck("kafka", kafka.NewHealthChecker(cfg.Kafka.Brokers).Check)

		if pool != nil {
			store := outbox.NewPostgresStore(pool.DB())
			relay := outbox.NewRelay(store, p,
				outbox.WithTopic(cfg.Kafka.AuditTopic),
				outbox.WithPollInterval(cfg.Kafka.OutboxPollInterval),
				outbox.WithMetrics(outbox.NewMetrics(a.Registry)),
				outbox.WithLogger(a.Logger),
			)
			relay.Start()
			a.closers = append(a.closers, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				return relay.Stop(ctx)
			})
			sink = audit.FanOut{a.Audit, outbox.NewSink(store)}
		} else {
			kafkaSink := audit.NewKafkaStore(p, cfg.Kafka.AuditTopic,
				audit.WithBreaker(circuit.New("kafka-audit",
					circuit.WithLogger(a.Logger),
					circuit.WithMetrics(circuit.NewMetrics(a.Registry)),
				)))
			sink = audit.FanOut{a.Audit, kafkaSink}
		}
	}

	a.publisher = audit.NewPublisher(sink,
		audit.WithAsyncBuffer(cfg.Pass.AuditBuffer),
		audit.WithPublisherLogger(a.Logger),
	)
	return nil
}

func recordPoolStats(ctx context.Context, client *redisclient.Client) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client.RecordPoolStats()
		}
	}
}

// Router returns the HTTP handler for the full API.
func (a *App) Router() http.Handler {
	return newRouter(a)
}

// Close drains the audit publisher, then closes stores in reverse order of
// opening.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	if a.publisher != nil {
		a.publisher.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

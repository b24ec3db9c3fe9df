// Package app assembles the sales service and its infrastructure from configuration.
// Both the HTTP server and the salesctl CLI build on it.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"salescycle/internal/config"
	"salescycle/internal/domain/audit"
	"salescycle/internal/domain/resolver"
	"salescycle/internal/domain/sales"
	"salescycle/internal/infrastructure/cache"
	"salescycle/internal/infrastructure/lock"
	"salescycle/internal/infrastructure/stamping"
	"salescycle/internal/infrastructure/storage/postgres"
	"salescycle/internal/infrastructure/storage/postgres/catalog_repo"
	"salescycle/internal/infrastructure/storage/postgres/document_repo"
	"salescycle/pkg/logger"
	"salescycle/pkg/numerator"
)

// App holds the wired components. Close releases them.
type App struct {
	Config      *config.Config
	Pool        *postgres.Pool
	TxManager   *postgres.TxManager
	Service     *sales.Service
	Activity    *audit.BoundedLog
	AuditStore  *postgres.AuditSink // nil unless audit.persist
	Display     *cache.DeliveryDisplay
	Invalidator *cache.Invalidator
	Idempotency *postgres.IdempotencyStore
	Redis       *redis.Client
}

// New connects to PostgreSQL (and Redis when enabled) and builds the service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a := &App{Config: cfg, Pool: pool}

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Database.StatementTimeout
	txOpts.LockTimeout = cfg.Database.LockTimeout
	a.TxManager = postgres.NewTxManager(pool).WithOptions(txOpts)

	names := catalog_repo.TableNames{
		Clients:  cfg.Legacy.ClientsTable,
		Vendors:  cfg.Legacy.VendorsTable,
		Sites:    cfg.Legacy.SitesTable,
		Products: cfg.Legacy.ProductsTable,
	}
	parties := catalog_repo.NewPartyRepo(a.TxManager, names)
	sites := catalog_repo.NewSiteRepo(a.TxManager, names)
	products := catalog_repo.NewProductRepo(a.TxManager, names)

	repos := sales.Repositories{
		Quotations:  document_repo.NewQuotationRepo(a.TxManager),
		Orders:      document_repo.NewOrderRepo(a.TxManager),
		Deliveries:  document_repo.NewDeliveryRepo(a.TxManager),
		Invoices:    document_repo.NewInvoiceRepo(a.TxManager),
		CreditNotes: document_repo.NewCreditNoteRepo(a.TxManager),
	}

	a.Activity = audit.NewBoundedLog(cfg.Audit.LogCapacity)
	sink := audit.MultiSink{a.Activity}
	if cfg.Audit.Persist {
		persisted, err := postgres.NewAuditSink(a.TxManager, cfg.Audit.CompressThreshold)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.AuditStore = persisted
		sink = append(sink, persisted)
	}

	var locker sales.Locker
	if cfg.Redis.Enabled {
		a.Redis, err = lock.NewRedisClient(ctx, lock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		locker = lock.NewRedisLocker(a.Redis, cfg.Redis.LockTTL)
	}

	a.Display = cache.NewDeliveryDisplay(repos.Deliveries)
	a.Invalidator = cache.NewInvalidator(pool.Pool, a.Display)

	if cfg.HTTP.IdempotencyEnabled {
		a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, cfg.HTTP.IdempotencyTTL)
	}

	txm := a.TxManager
	a.Service = sales.NewService(sales.Config{
		Repos:    repos,
		Resolver: resolver.New(parties, sites),
		Products: products,
		Numerator: numerator.NewWithQuerier(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		TxManager: txm,
		Stamper: stamping.NewSandbox(stamping.SandboxConfig{
			IssuerID:     cfg.Stamping.IssuerID,
			TechnicalKey: cfg.Stamping.TechnicalKey,
			Latency:      cfg.Stamping.SandboxLatency,
		}),
		Audit:           audit.NewEmitter(sink),
		Locker:          locker,
		Display:         a.Display,
		StampingTimeout: cfg.Stamping.Timeout,
	})

	logger.Info(ctx, "sales service initialized",
		"redis_lock", cfg.Redis.Enabled,
		"audit_persist", cfg.Audit.Persist,
		"idempotency", cfg.HTTP.IdempotencyEnabled,
	)
	return a, nil
}

// Close releases connections. It is safe on a partially built App.
func (a *App) Close() {
	if a.Invalidator != nil {
		a.Invalidator.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/course-ledger-api/internal/handler"
	"github.com/noah-isme/course-ledger-api/internal/repository"
	"github.com/noah-isme/course-ledger-api/internal/repository/memory"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/cache"
	"github.com/noah-isme/course-ledger-api/pkg/config"
	"github.com/noah-isme/course-ledger-api/pkg/database"
	"github.com/noah-isme/course-ledger-api/pkg/storage"
)

// backends owns the process-wide connections opened during startup.
type backends struct {
	stores service.Stores
	db     *sqlx.DB
	redis  *redis.Client
	checks map[string]handler.ReadinessCheck
}

func (b *backends) Close(logr *zap.Logger) {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logr.Warn("redis close failed", zap.Error(err))
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logr.Warn("database close failed", zap.Error(err))
		}
	}
}

func openBackends(cfg *config.Config, logr *zap.Logger) (*backends, error) {
	b := &backends{checks: map[string]handler.ReadinessCheck{}}

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.RunMigrations {
			if err := database.RunMigrations(db.DB, logr.Named("migrate")); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		b.db = db
		b.checks["database"] = func(ctx context.Context) error { return db.PingContext(ctx) }
		b.stores = service.Stores{
			Courses:     repository.NewCourseRepository(db),
			Students:    repository.NewStudentRepository(db),
			Enrollments: repository.NewEnrollmentRepository(db),
			Payments:    repository.NewPaymentRepository(db),
			AuditLogs:   repository.NewAuditRepository(db),
		}
	case config.StoreDriverMemory, "":
		var snapshots memory.SnapshotStorage
		if cfg.Store.SnapshotDir != "" {
			local, err := storage.NewLocalStorage(cfg.Store.SnapshotDir)
			if err != nil {
				return nil, fmt.Errorf("open snapshot dir: %w", err)
			}
			snapshots = local
		}
		store, err := memory.NewStore(snapshots, logr.Named("store"))
		if err != nil {
			return nil, err
		}
		b.stores = service.Stores{
			Courses:     store.Courses(),
			Students:    store.Students(),
			Enrollments: store.Enrollments(),
			Payments:    store.Payments(),
			AuditLogs:   store.AuditLogs(),
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	if cfg.Statistics.CacheEnabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			b.Close(logr)
			return nil, err
		}
		b.redis = client
		b.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return b, nil
}

// cacheService fronts statistics with Redis when a client was opened; otherwise caching is off.
func (b *backends) cacheService(cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) *service.CacheService {
	if b.redis == nil {
		return service.NewCacheService(nil, metrics, cfg.Statistics.CacheTTL, logr, false)
	}
	repo := repository.NewCacheRepository(b.redis, logr.Named("cache"))
	return service.NewCacheService(repo, metrics, cfg.Statistics.CacheTTL, logr.Named("cache"), true)
}

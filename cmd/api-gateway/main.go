package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/course-ledger-api/api/swagger"
	"github.com/noah-isme/course-ledger-api/internal/handler"
	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/seed"
	"github.com/noah-isme/course-ledger-api/internal/service"
	"github.com/noah-isme/course-ledger-api/pkg/config"
	"github.com/noah-isme/course-ledger-api/pkg/jobs"
	"github.com/noah-isme/course-ledger-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-ledger-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-ledger-api/pkg/middleware/requestid"
)

// @title Course Ledger API
// @version 1.0.0
// @description Course catalog, enrollments with installment schedules and a unified payment ledger.
// @BasePath /api
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backends, err := openBackends(cfg, logr)
	if err != nil {
		return err
	}
	defer backends.Close(logr)

	metrics := service.NewMetricsService()
	svc := service.NewContainer(backends.stores, backends.cacheService(cfg, metrics, logr), metrics, logr)

	if cfg.Store.SeedOnStart {
		data, err := seed.Load()
		if err != nil {
			return err
		}
		if _, err := svc.Seeder.Seed(ctx, data); err != nil {
			return fmt.Errorf("seed store: %w", err)
		}
	}

	queue := jobs.NewQueue("ledger", jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.MaxRetries,
		Logger:     logr.Named("jobs"),
	})
	svc.Overdue.Register(queue)
	queue.Start(ctx)
	defer queue.Stop()

	scheduler := jobs.NewScheduler(queue, logr.Named("scheduler"))
	if cfg.Overdue.Enabled {
		if err := scheduler.Every(cfg.Overdue.Schedule, service.OverdueSweepJob); err != nil {
			return err
		}
		if _, err := queue.Enqueue(jobs.Job{Type: service.OverdueSweepJob}); err != nil {
			logr.Warn("initial overdue sweep not enqueued", zap.Error(err))
		}
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(cfg, logr, svc, backends.checks),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRouter(cfg *config.Config, logr *zap.Logger, svc *service.Container, checks map[string]handler.ReadinessCheck) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(svc.Metrics))

	handler.RegisterOps(r, handler.NewMetricsHandler(svc.Metrics, checks))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.Actor(), middleware.WithResponseMeta())
	handler.RegisterRoutes(api, handler.Handlers{
		Payments:    handler.NewPaymentHandler(svc.Ledger),
		Enrollments: handler.NewEnrollmentHandler(svc.Enrollments, svc.Ledger, svc.Reports),
		Students:    handler.NewStudentHandler(svc.Students, svc.Reconciler),
		Courses:     handler.NewCourseHandler(svc.Catalog),
		Statistics:  handler.NewStatisticsHandler(svc.Reconciler),
		Reports:     handler.NewReportHandler(svc.Reports),
		Audit:       handler.NewAuditHandler(svc.Audit),
	})
	return r
}

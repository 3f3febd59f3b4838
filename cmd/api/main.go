package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/classroom-workflow-api/api/swagger"
	"github.com/noah-isme/classroom-workflow-api/internal/handler"
	"github.com/noah-isme/classroom-workflow-api/internal/repository"
	"github.com/noah-isme/classroom-workflow-api/internal/router"
	"github.com/noah-isme/classroom-workflow-api/internal/service"
	"github.com/noah-isme/classroom-workflow-api/pkg/cache"
	"github.com/noah-isme/classroom-workflow-api/pkg/clock"
	"github.com/noah-isme/classroom-workflow-api/pkg/config"
	"github.com/noah-isme/classroom-workflow-api/pkg/database"
	"github.com/noah-isme/classroom-workflow-api/pkg/jobs"
	"github.com/noah-isme/classroom-workflow-api/pkg/logger"
	"github.com/noah-isme/classroom-workflow-api/pkg/storage"
)

// @title Classroom Workflow API
// @version 1.0.0
// @description Enrollment approval, assignment submissions and timed exams.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.AutoMigrate {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err), zap.String("addr", cache.Addr(cfg.Redis)))
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	} else {
		logr.Warn("redis disabled: exam cache off, notifications logged only")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.System{}
	metrics := service.NewMetricsService()

	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	examRepo := repository.NewExamRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var (
		cacheSvc *service.CacheService
		notifier service.Notifier
	)
	if redisClient != nil {
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(redisClient, logr), metrics, cfg.Exams.CacheTTL, logr, true)
		notifier = service.NewRedisNotifier(repository.NewNotificationRepository(redisClient, cfg.Notify.QueueKey))
	} else {
		notifier = service.NewLogNotifier(logr)
	}

	var notifications *service.NotificationService
	effectQueue := jobs.NewQueue("workflow-effects", jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.Retries,
		Logger:     logr,
		OnDone: func(job jobs.Job, err error) {
			notifications.OnJobDone(job, err)
		},
	})
	notifications = service.NewNotificationService(notifier, auditRepo, effectQueue, clk, metrics, logr)
	effectQueue.Start(context.Background())

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, classRepo, metrics, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, submissionRepo, classRepo, enrollmentRepo, metrics, logr)
	examSvc := service.NewExamService(examRepo, attemptRepo, classRepo, enrollmentRepo, cacheSvc, cfg.Exams.CacheTTL, metrics, logr)
	coordinator := service.NewCoordinator(enrollmentSvc, assignmentSvc, examSvc, notifications, clk, metrics, logr)
	authoring := service.NewAuthoringService(classRepo, assignmentRepo, examRepo, enrollmentRepo, cacheSvc, validator.New(), logr)
	tokens := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration, clk)

	expiryQueue := jobs.NewQueue("attempt-expiry", jobs.QueueConfig{Workers: 2, MaxRetries: 3, Logger: logr})
	sweeper := service.NewExpirySweeper(attemptRepo, coordinator, expiryQueue, clk, service.ExpirySweeperConfig{
		Interval: cfg.Exams.SweepInterval,
		Batch:    cfg.Exams.SweepBatch,
	}, metrics, logr)
	expiryQueue.Start(context.Background())
	sweeper.Start(ctx)

	handlers := router.Handlers{
		Classes:     handler.NewClassHandler(authoring, coordinator, clk),
		Enrollments: handler.NewEnrollmentHandler(coordinator),
		Assignments: handler.NewAssignmentHandler(coordinator),
		Exams:       handler.NewExamHandler(coordinator),
		Audit:       handler.NewAuditHandler(auditRepo),
		Metrics:     handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisClient)),
	}

	if cfg.Exports.Enabled {
		files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exports := service.NewExportService(coordinator, coordinator, files, signer, clk, service.ExportConfig{
			APIPrefix:       cfg.APIPrefix,
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		}, logr)
		exports.StartCleanup(ctx)
		handlers.Exports = handler.NewExportHandler(exports)
	}

	r := router.New(logr, tokens, metrics, handlers, router.Options{
		APIPrefix:          cfg.APIPrefix,
		AllowedOrigins:     cfg.CORS.AllowedOrigins,
		EnableDocs:         cfg.Env != config.EnvProduction,
		AllowClockOverride: cfg.Env != config.EnvProduction,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}

	// Queues outlive in-flight requests; expiry jobs publish into the effect queue.
	expiryQueue.Stop()
	effectQueue.Stop()
}

func readinessChecks(pingDB func(context.Context) error, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"postgres": pingDB}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	return checks
}

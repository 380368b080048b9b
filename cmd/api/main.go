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
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/admission-leads-api/internal/dto"
	"github.com/noah-isme/admission-leads-api/internal/models"
	"github.com/noah-isme/admission-leads-api/internal/repository"
	"github.com/noah-isme/admission-leads-api/internal/service"
	"github.com/noah-isme/admission-leads-api/pkg/cache"
	"github.com/noah-isme/admission-leads-api/pkg/changefeed"
	"github.com/noah-isme/admission-leads-api/pkg/config"
	"github.com/noah-isme/admission-leads-api/pkg/database"
	"github.com/noah-isme/admission-leads-api/pkg/jobs"
	"github.com/noah-isme/admission-leads-api/pkg/logger"
	"github.com/noah-isme/admission-leads-api/pkg/mailer"
	"github.com/noah-isme/admission-leads-api/pkg/objectstore"
	"github.com/noah-isme/admission-leads-api/pkg/phone"
	"github.com/noah-isme/admission-leads-api/pkg/storage"
)

// @title Admission Leads API
// @version 1.0.0
// @description Lead intake, distribution, call verification and audit for the admissions desk
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		logr.Info("database migrations complete")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	deps, err := buildApp(ctx, cfg, logr, db, redisClient)
	if err != nil {
		return err
	}
	defer deps.shutdown()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// app holds the wired services the router needs.
type app struct {
	db        *sqlx.DB
	redis     *redis.Client
	metrics   *service.MetricsService
	auth      *service.AuthService
	staff     *service.StaffService
	leads     *service.LeadService
	stats     *service.StatsService
	classify  *service.ClassificationService
	distrib   *service.DistributionService
	calls     *service.CallService
	audits    *service.VerificationService
	exports   *service.ForwardExportService
	logs      *service.SystemLogService
	snapshots *service.SnapshotService
	queue     *jobs.Queue
}

func (a *app) shutdown() {
	a.calls.Shutdown()
	a.queue.Stop()
}

func buildApp(ctx context.Context, cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client) (*app, error) {
	validate := dto.NewValidator()
	metrics := service.NewMetricsService()

	leadRepo := repository.NewLeadRepository(db)
	staffRepo := repository.NewStaffRepository(db)
	logRepo := repository.NewSystemLogRepository(db)
	exportRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	feed := changefeed.New(redisClient, cfg.ChangeFeed.Channel, logr)
	recorder := service.NewActivityRecorder(logRepo, feed, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled)
	stats := service.NewStatsService(leadRepo, cacheSvc, cfg.Stats.CacheTTL, logr)

	calls := service.NewCallService(leadRepo, phone.NewDialer(cfg.Phone.DefaultRegion), recorder, metrics, logr, service.CallServiceConfig{
		MinValidDuration: cfg.Calls.MinValidDuration,
	})
	classify := service.NewClassificationService(leadRepo, calls, validate, recorder, metrics, logr, calls.MinValidDuration())
	distrib := service.NewDistributionService(leadRepo, staffRepo, recorder, metrics, logr)

	audits, err := newVerificationService(ctx, cfg, logr, staffRepo, leadRepo, validate, recorder, metrics, calls.MinValidDuration())
	if err != nil {
		return nil, err
	}

	defaultDept, _ := models.ParseDepartment(cfg.Leads.DefaultDepartment)
	namespace, err := uuid.Parse(cfg.Leads.ImportNamespace)
	if err != nil {
		logr.Warn("invalid lead import namespace, using default", zap.String("namespace", cfg.Leads.ImportNamespace))
	}
	leads := service.NewLeadService(leadRepo, staffRepo, validate, recorder, logr, service.LeadServiceConfig{
		DefaultDepartment: defaultDept,
		ImportNamespace:   namespace,
		PhoneRegion:       cfg.Phone.DefaultRegion,
		PhoneLength:       cfg.Phone.Length,
	})
	staff := service.NewStaffService(staffRepo, validate, recorder, logr)
	auth := service.NewAuthService(staffRepo, validate, recorder, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	snapshots := service.NewSnapshotService(leadRepo, staffRepo, logRepo, feed, logr)
	snapshots.OnChange(func(ctx context.Context, collection string) {
		if collection == changefeed.CollectionLeads {
			stats.Invalidate(ctx)
		}
	})
	if err := snapshots.Start(ctx); err != nil {
		return nil, err
	}

	exports, queue, err := newForwardExports(ctx, cfg, logr, exportRepo, leadRepo, staffRepo, validate, recorder, metrics)
	if err != nil {
		return nil, err
	}

	return &app{
		db:        db,
		redis:     redisClient,
		metrics:   metrics,
		auth:      auth,
		staff:     staff,
		leads:     leads,
		stats:     stats,
		classify:  classify,
		distrib:   distrib,
		calls:     calls,
		audits:    audits,
		exports:   exports,
		logs:      service.NewSystemLogService(logRepo),
		snapshots: snapshots,
		queue:     queue,
	}, nil
}

func newVerificationService(ctx context.Context, cfg *config.Config, logr *zap.Logger, staffRepo *repository.StaffRepository, leadRepo *repository.LeadRepository, validate *validator.Validate, recorder *service.ActivityRecorder, metrics *service.MetricsService, minDuration time.Duration) (*service.VerificationService, error) {
	if !cfg.MinIO.Enabled {
		logr.Info("evidence storage disabled")
		return service.NewVerificationService(staffRepo, leadRepo, nil, service.RandomPicker{}, validate, recorder, metrics, logr, minDuration), nil
	}
	store, err := objectstore.New(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logr.Info("evidence storage ready", zap.String("bucket", cfg.MinIO.Bucket))
	return service.NewVerificationService(staffRepo, leadRepo, store, service.RandomPicker{}, validate, recorder, metrics, logr, minDuration), nil
}

func newForwardExports(ctx context.Context, cfg *config.Config, logr *zap.Logger, exportRepo *repository.ExportJobRepository, leadRepo *repository.LeadRepository, staffRepo *repository.StaffRepository, validate *validator.Validate, recorder *service.ActivityRecorder, metrics *service.MetricsService) (*service.ForwardExportService, *jobs.Queue, error) {
	files, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	downloadBase := cfg.APIPrefix + "/exports/download"

	var worker *service.ForwardExportWorker
	if cfg.SMTP.Enabled {
		worker = service.NewForwardExportWorker(exportRepo, leadRepo, staffRepo, files, signer, mailer.NewSMTPMailer(cfg.SMTP), recorder, metrics, logr, downloadBase, cfg.Exports.WorkerRetries)
	} else {
		logr.Info("export mail delivery disabled")
		worker = service.NewForwardExportWorker(exportRepo, leadRepo, staffRepo, files, signer, nil, recorder, metrics, logr, downloadBase, cfg.Exports.WorkerRetries)
	}
	queue := jobs.NewQueue("forwarded-export", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	exports := service.NewForwardExportService(exportRepo, queue, files, signer, validate, logr, service.ForwardExportConfig{
		DownloadBasePath: downloadBase,
		ResultTTL:        cfg.Exports.SignedURLTTL,
		CleanupInterval:  time.Hour,
	})
	exports.RecoverPendingJobs(ctx)
	exports.StartCleanup(ctx)
	return exports, queue, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	_ "github.com/noah-isme/scholarhub-api/api/swagger"
	"github.com/noah-isme/scholarhub-api/internal/handler"
	"github.com/noah-isme/scholarhub-api/internal/models"
	"github.com/noah-isme/scholarhub-api/internal/repository"
	"github.com/noah-isme/scholarhub-api/internal/service"
	"github.com/noah-isme/scholarhub-api/pkg/cache"
	"github.com/noah-isme/scholarhub-api/pkg/config"
	"github.com/noah-isme/scholarhub-api/pkg/database"
	"github.com/noah-isme/scholarhub-api/pkg/export"
	"github.com/noah-isme/scholarhub-api/pkg/jobs"
	"github.com/noah-isme/scholarhub-api/pkg/logger"
	"github.com/noah-isme/scholarhub-api/pkg/storage"
)

// @title ScholarHub API
// @version 1.0.0
// @description Scholarship catalog, dashboards and exports
// @BasePath /api/v1
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		migrations, err := database.Migrations()
		if err != nil {
			logr.Fatal("failed to load migrations", zap.Error(err))
		}
		if _, err := database.Migrate(ctx, db, migrations, logr); err != nil {
			logr.Fatal("failed to migrate database", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "scholarhub", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)

	scholarshipRepo := repository.NewScholarshipRepository(db)
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewStudentProfileRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	settingsSvc := service.NewSettingsService(settingRepo, userRepo, cacheSvc, validate, logr, service.SettingsServiceConfig{
		Defaults: map[string]string{
			models.SettingMaxAmountFilter: strconv.FormatFloat(cfg.Catalog.MaxAmount, 'f', 0, 64),
		},
	})

	locale, err := language.Parse(cfg.Catalog.Locale)
	if err != nil {
		logr.Warn("invalid catalog locale, using English", zap.String("locale", cfg.Catalog.Locale))
		locale = language.English
	}
	scholarshipSvc := service.NewScholarshipService(service.ScholarshipServiceParams{
		Repo:      scholarshipRepo,
		Settings:  settingsSvc,
		Audit:     userRepo,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.ScholarshipServiceConfig{
			CacheTTL: cfg.Catalog.CacheTTL,
			Locale:   locale,
			PageSize: cfg.Catalog.PageSize,
		},
	})

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Scholarships: scholarshipRepo,
		Catalog:      scholarshipSvc,
		Profiles:     profileRepo,
		Accounts:     userRepo,
		Metrics:      metricsSvc,
		Cache:        cacheSvc,
		Logger:       logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:    cfg.Dashboard.CacheTTL,
			UrgentLimit: cfg.Dashboard.UrgentLimit,
		},
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "scholarhub-api",
		Audience:           []string{"scholarhub-clients"},
		AllowSignup:        cfg.Signup.Enabled,
	}).WithProfiles(profileRepo).WithMetrics(metricsSvc)
	userSvc := service.NewUserService(userRepo, validate, logr)
	profileSvc := service.NewStudentProfileService(profileRepo, cacheSvc, validate, logr)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	formSvc := service.NewApplicationFormService(
		scholarshipRepo,
		uploadStore,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		userRepo,
		cacheSvc,
		logr,
		service.ApplicationFormServiceConfig{
			MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		},
	)

	var exportJobSvc *service.ExportJobService
	if cfg.Exports.Enabled {
		exportJobSvc, err = startExports(ctx, cfg, exportRepo, scholarshipSvc, metricsSvc, validate, logr)
		if err != nil {
			logr.Fatal("failed to start export pipeline", zap.Error(err))
		}
	}

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:         authSvc,
		users:        userSvc,
		scholarships: scholarshipSvc,
		forms:        formSvc,
		dashboard:    dashboardSvc,
		profiles:     profileSvc,
		settings:     settingsSvc,
		exports:      exportJobSvc,
		metrics:      metricsSvc,
		audit:        userRepo,
		checks:       checks,
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
}

// startExports wires the export storage, worker queue and cleanup loop.
func startExports(ctx context.Context, cfg *config.Config, repo *repository.ExportJobRepository, catalog *service.ScholarshipService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ExportJobService, error) {
	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exporter := service.NewExportService(catalog, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(true), export.NewPDFExporter())

	worker := service.NewExportWorker(repo, exporter, metrics, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("catalog-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	queue.Start(ctx)
	go func() {
		<-ctx.Done()
		queue.Stop()
	}()

	svc := service.NewExportJobService(repo, queue, exporter, validate, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	if recovered := svc.RecoverPendingJobs(ctx); recovered > 0 {
		logr.Info("re-queued pending exports", zap.Int("count", recovered))
	}
	svc.StartCleanup(ctx)
	return svc, nil
}

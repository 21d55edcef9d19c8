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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dat-progress-api/api/swagger"
	"github.com/noah-isme/dat-progress-api/internal/handler"
	internalmiddleware "github.com/noah-isme/dat-progress-api/internal/middleware"
	"github.com/noah-isme/dat-progress-api/internal/models"
	"github.com/noah-isme/dat-progress-api/internal/repository"
	"github.com/noah-isme/dat-progress-api/internal/service"
	"github.com/noah-isme/dat-progress-api/pkg/advisor"
	"github.com/noah-isme/dat-progress-api/pkg/cache"
	"github.com/noah-isme/dat-progress-api/pkg/config"
	"github.com/noah-isme/dat-progress-api/pkg/database"
	"github.com/noah-isme/dat-progress-api/pkg/export"
	"github.com/noah-isme/dat-progress-api/pkg/jobs"
	"github.com/noah-isme/dat-progress-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dat-progress-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dat-progress-api/pkg/middleware/requestid"
	"github.com/noah-isme/dat-progress-api/pkg/storage"
)

// @title DAT Progress API
// @version 1.0.0
// @description Driving-school practical training ledger
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type blobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, blob []byte) error
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Storage.Driver == config.StorageDriverRedis || cfg.Dashboard.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
	}

	var db *sqlx.DB
	if cfg.Storage.Driver == config.StorageDriverPostgres {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect postgres", "error", err)
		}
		defer db.Close() //nolint:errcheck
	}

	blobs, err := buildBlobStore(ctx, cfg, db, redisClient)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare ledger storage", "driver", cfg.Storage.Driver, "error", err)
	}

	metricsSvc := service.NewMetricsService()
	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, "dat:cache:", logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)

	validate := validator.New()
	ledgerSvc, err := service.NewLedgerService(blobs, models.DefaultRequirements(), cacheSvc, metricsSvc, validate, logr, service.LedgerServiceConfig{
		CourseName:   cfg.Course.DefaultName,
		AcademicYear: cfg.Course.DefaultAcademicYear,
	})
	if err != nil {
		logr.Sugar().Fatalw("invalid requirements table", "error", err)
	}

	accountRepo := repository.NewAccountRepository(blobs)
	authSvc := service.NewAuthService(accountRepo, ledgerSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if err := authSvc.EnsureBootstrapAccount(ctx, cfg.Auth.BootstrapUsername, cfg.Auth.BootstrapPassword); err != nil {
		logr.Warn("failed to seed bootstrap account", zap.Error(err))
	}

	advisorClient := advisor.NewClient(advisor.Config{
		Endpoint: cfg.Advisor.Endpoint,
		APIKey:   cfg.Advisor.APIKey,
		Model:    cfg.Advisor.Model,
		Timeout:  cfg.Advisor.Timeout,
	}, nil, logr)
	analysisSvc := service.NewAnalysisService(ledgerSvc, advisorClient, nil, metricsSvc, logr, cfg.Advisor.Language)
	analysisQueue := jobs.NewQueue("analysis", analysisSvc.Process, jobs.QueueConfig{
		Workers:    cfg.Analysis.Workers,
		MaxRetries: cfg.Analysis.Retries,
		RetryDelay: 2 * time.Second,
		JobTimeout: cfg.Advisor.Timeout + 5*time.Second,
		GiveUp:     analysisSvc.GiveUp,
		Logger:     logr,
	})
	analysisSvc.SetDispatcher(analysisQueue)
	analysisQueue.Start(ctx)
	defer analysisQueue.Stop()

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(ledgerSvc, exportStorage, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())
	exportSvc.StartCleanup(ctx)

	dashboardSvc := service.NewDashboardService(ledgerSvc, cacheSvc, logr, service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL})

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(ledgerSvc)
	courseHandler := handler.NewCourseHandler(ledgerSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, ledgerSvc)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient))

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/export/:token", exportHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	students := secured.Group("/students")
	students.GET("", studentHandler.List)
	students.POST("", studentHandler.Create)
	students.GET("/export", exportHandler.Export)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id", studentHandler.Update)
	students.DELETE("/:id", studentHandler.Delete)
	students.GET("/:id/sessions", studentHandler.ListSessions)
	students.POST("/:id/sessions", studentHandler.AddSession)
	students.DELETE("/:id/sessions/:sessionId", studentHandler.DeleteSession)
	students.POST("/:id/analysis", analysisHandler.Request)

	secured.GET("/analyses/:id", analysisHandler.Get)

	course := secured.Group("/course")
	course.GET("", courseHandler.Get)
	course.PUT("", courseHandler.Update)
	course.POST("/archive", courseHandler.Archive)
	course.GET("/history", courseHandler.History)
	course.GET("/history/:id", courseHandler.HistoryDetail)
	course.DELETE("/history/:id", courseHandler.DeleteHistory)

	secured.GET("/notifications", courseHandler.Notifications)
	secured.GET("/dashboard", dashboardHandler.Summary)
	secured.POST("/ledger/reload", courseHandler.Reload)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func buildBlobStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) (blobStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		repo := repository.NewPostgresBlobRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil
	case config.StorageDriverRedis:
		return repository.NewRedisBlobRepository(redisClient, "dat:"), nil
	case config.StorageDriverMemory:
		return repository.NewMemoryBlobRepository(), nil
	case config.StorageDriverFile, "":
		local, err := storage.NewLocalStorage(cfg.Storage.Dir)
		if err != nil {
			return nil, err
		}
		return repository.NewFileBlobRepository(local), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func readinessChecks(db *sqlx.DB, redisClient *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{}
	if db != nil {
		checks["postgres"] = func(ctx context.Context) error { return db.PingContext(ctx) }
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	return checks
}

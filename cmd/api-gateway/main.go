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
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/pesantren-dev/asrama-adp-api/api/swagger"
	"github.com/pesantren-dev/asrama-adp-api/internal/billing"
	"github.com/pesantren-dev/asrama-adp-api/internal/handler"
	"github.com/pesantren-dev/asrama-adp-api/internal/middleware"
	"github.com/pesantren-dev/asrama-adp-api/internal/models"
	"github.com/pesantren-dev/asrama-adp-api/internal/progress"
	"github.com/pesantren-dev/asrama-adp-api/internal/repository"
	"github.com/pesantren-dev/asrama-adp-api/internal/service"
	"github.com/pesantren-dev/asrama-adp-api/pkg/cache"
	"github.com/pesantren-dev/asrama-adp-api/pkg/config"
	"github.com/pesantren-dev/asrama-adp-api/pkg/database"
	"github.com/pesantren-dev/asrama-adp-api/pkg/logger"
	corsmiddleware "github.com/pesantren-dev/asrama-adp-api/pkg/middleware/cors"
	reqidmiddleware "github.com/pesantren-dev/asrama-adp-api/pkg/middleware/requestid"
	"github.com/pesantren-dev/asrama-adp-api/pkg/storage"
)

// @title Asrama ADP API
// @version 1.0.0
// @description Administration dashboard API for pesantren dormitories
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var cacheRepo *repository.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
			defer cacheRepo.Close()
		}
	}
	if cacheRepo == nil {
		cacheRepo = repository.NewCacheRepository(nil, logr)
	}

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	santriRepo := repository.NewSantriRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "asrama-adp-api",
	})

	santriSvc := service.NewSantriService(santriRepo, cacheRepo, validate, logr, cfg.KodeAsrama, cfg.Cache.RosterTTL)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, santriRepo, validate, logr, cfg.KodeAsrama)
	if cfg.Cache.Enabled {
		attendanceSvc.SetCache(cacheRepo, cfg.Cache.ReportTTL)
	}

	registry := progress.NewRegistry(cfg.Bulk.DismissAfter, logr)
	bulkSvc := service.NewBulkService(santriSvc, santriRepo, registry, logr, service.BulkConfig{
		ImportItemDelay:  cfg.Bulk.ImportItemDelay,
		DeleteBatchSize:  cfg.Bulk.DeleteBatchSize,
		DeleteBatchPause: cfg.Bulk.DeleteBatchPause,
	})

	billingClient := billing.NewClient(cfg.Billing.FunctionURL, cfg.Billing.Timeout, logr)
	gateway := service.NewSnapGateway(cfg.Payments.ServerKey, cfg.Payments.Production)
	paymentsSvc := service.NewPaymentHistoryService(billingClient, santriSvc, userRepo, gateway, validate, logr, service.PaymentHistoryConfig{
		InitialEmptyWait:    cfg.Billing.InitialEmptyWait,
		SubsequentEmptyWait: cfg.Billing.SubsequentEmptyWait,
	})

	exportSvc := service.NewExportService(santriSvc, attendanceSvc, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr)

	metricsSvc := service.NewMetricsService()
	santriSvc.SetMetrics(metricsSvc)
	bulkSvc.SetMetrics(metricsSvc)
	paymentsSvc.SetMetrics(metricsSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	santriHandler := handler.NewSantriHandler(santriSvc, bulkSvc, exportSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc, exportSvc)
	paymentHandler := handler.NewPaymentHandler(paymentsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/auth/refresh", authHandler.Refresh)
		api.GET("/export/:token", exportHandler.Download)

		authed := api.Group("", middleware.JWT(authSvc))
		{
			authed.POST("/auth/logout", authHandler.Logout)
			authed.POST("/auth/change-password", authHandler.ChangePassword)
			authed.GET("/auth/me", authHandler.Me)

			admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
			{
				admin.GET("/santri", santriHandler.List)
				admin.POST("/santri", santriHandler.Create)
				admin.GET("/santri/export", santriHandler.ExportRoster)
				admin.POST("/santri/bulk-import", santriHandler.BulkImport)
				admin.POST("/santri/bulk-delete", santriHandler.BulkDelete)
				admin.GET("/santri/bulk/:id", santriHandler.BulkProgress)
				admin.DELETE("/santri/bulk/:id", santriHandler.BulkDismiss)
				admin.GET("/santri/:id", santriHandler.Get)
				admin.PUT("/santri/:id", santriHandler.Update)
				admin.DELETE("/santri/:id", santriHandler.Delete)

				admin.POST("/attendance/records", attendanceHandler.Record)
				admin.GET("/attendance/report", attendanceHandler.Generate)
				admin.GET("/attendance/report/download", attendanceHandler.Download)
				admin.GET("/attendance/report/export/csv", attendanceHandler.ExportCSV)
				admin.GET("/attendance/report/export/pdf", attendanceHandler.ExportPDF)

				admin.GET("/metrics/snapshot", metricsHandler.Snapshot)
			}

			superadmin := authed.Group("", middleware.RequireRoles(models.RoleSuperAdmin))
			{
				superadmin.POST("/users", authHandler.CreateUser)
			}

			wali := authed.Group("", middleware.RequireRoles(models.RoleWaliSantri))
			{
				wali.GET("/payments", paymentHandler.View)
				wali.POST("/payments", paymentHandler.Submit)
				wali.POST("/payments/reload", paymentHandler.Reload)
				wali.DELETE("/payments/session", paymentHandler.Close)
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bulkSvc.Start(ctx)
	defer bulkSvc.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Exports.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := exportSvc.Cleanup(cfg.Exports.SignedURLTTL)
				if err != nil {
					logr.Sugar().Warnw("export cleanup failed", "error", err)
				} else if len(removed) > 0 {
					logr.Sugar().Infow("expired exports removed", "count", len(removed))
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "kodeAsrama", cfg.KodeAsrama)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}

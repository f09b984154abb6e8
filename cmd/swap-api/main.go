package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/section-swap-api/api/swagger"
	"github.com/noah-isme/section-swap-api/internal/handler"
	"github.com/noah-isme/section-swap-api/internal/middleware"
	"github.com/noah-isme/section-swap-api/internal/models"
	"github.com/noah-isme/section-swap-api/internal/repository"
	"github.com/noah-isme/section-swap-api/internal/service"
	"github.com/noah-isme/section-swap-api/pkg/cache"
	"github.com/noah-isme/section-swap-api/pkg/config"
	"github.com/noah-isme/section-swap-api/pkg/database"
	"github.com/noah-isme/section-swap-api/pkg/export"
	"github.com/noah-isme/section-swap-api/pkg/jobs"
	"github.com/noah-isme/section-swap-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/section-swap-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/section-swap-api/pkg/middleware/requestid"
)

// @title Section Swap API
// @version 0.1.0
// @description Matches students exchanging class sections via direct swaps and rotation chains
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// the match-flag cache is an optimisation; searches work without it
		logr.Sugar().Warnw("redis unavailable, match-flag caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db, logr)
	recordRepo := repository.NewSwapRecordRepository(db)
	flagRepo := repository.NewMatchFlagRepository(redisClient, logr)
	defer flagRepo.Close() //nolint:errcheck

	swapSvc := service.NewSwapService(studentRepo, recordRepo, flagRepo, studentRepo, metricsSvc, validate, logr, cfg.Matching)
	studentSvc := service.NewStudentService(studentRepo, swapSvc, validate, logr)
	exportSvc := service.NewMatchExportService(studentRepo, swapSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	refreshWorker := service.NewMatchRefreshWorker(swapSvc, logr)
	refreshQueue := jobs.NewQueue("match-refresh", refreshWorker.Handle, jobs.QueueConfig{
		Workers:    cfg.Refresh.Workers,
		MaxRetries: cfg.Refresh.MaxRetries,
		RetryDelay: cfg.Refresh.RetryDelay,
		Logger:     logr,
	})
	refreshQueue.Start(context.Background())
	defer refreshQueue.Stop()
	swapSvc.SetRefreshDispatcher(refreshQueue)

	studentHandler := handler.NewStudentHandler(studentSvc, swapSvc)
	swapHandler := handler.NewSwapHandler(swapSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	verifier := middleware.NewTokenVerifier(cfg.JWT.Secret)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(verifier))

	students := api.Group("/students")
	students.GET("", studentHandler.List)
	students.GET("/:id", studentHandler.Get)
	students.PUT("/:id/preferences", middleware.RBAC(string(models.RoleAdmin), string(models.RoleStaff), "SELF"), studentHandler.UpdatePreferences)

	swaps := api.Group("/swaps")
	swaps.POST("/search", swapHandler.Search)
	swaps.POST("/commit", swapHandler.Commit)
	swaps.GET("/history", swapHandler.History)
	swaps.GET("/matches", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), swapHandler.Matches)
	swaps.GET("/matches/export", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), swapHandler.ExportMatches)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

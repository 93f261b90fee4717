package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-occurrences-api/api/swagger"
	"github.com/noah-isme/sma-occurrences-api/internal/handler"
	"github.com/noah-isme/sma-occurrences-api/internal/middleware"
	"github.com/noah-isme/sma-occurrences-api/internal/repository"
	"github.com/noah-isme/sma-occurrences-api/internal/service"
	"github.com/noah-isme/sma-occurrences-api/pkg/cache"
	"github.com/noah-isme/sma-occurrences-api/pkg/config"
	"github.com/noah-isme/sma-occurrences-api/pkg/database"
	"github.com/noah-isme/sma-occurrences-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-occurrences-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-occurrences-api/pkg/middleware/requestid"
)

// @title SMA Occurrences API
// @version 1.0.0
// @description Student occurrence tracking with role-based follow-up
// @BasePath /api/v1
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

	// The service starts without a store so reads can degrade to notices.
	db, err := database.Open(cfg.Database)
	if err != nil {
		logr.Warn("occurrence store unavailable at startup", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	} else {
		defer db.Close()
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var epochs service.EpochStore
	redisClient, err := cache.NewRedis(startCtx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, cache invalidation stays local", zap.Error(err))
	} else if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, cfg.Redis.EpochKey, logr)
		defer cacheRepo.Close() //nolint:errcheck
		epochs = cacheRepo
	}

	metrics := service.NewMetricsService()
	occurrences := buildOccurrenceService(db, epochs, metrics, logr, cfg.Location())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, middleware.LogFields))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, occurrences, metrics)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "driver", cfg.Database.Driver)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func buildOccurrenceService(db *sqlx.DB, epochs service.EpochStore, metrics *service.MetricsService, logr *zap.Logger, loc *time.Location) *service.OccurrenceService {
	store := repository.NewOccurrenceStore(db, metrics, loc)
	snapshots := service.NewCacheService(store, epochs, metrics, logr)
	return service.NewOccurrenceService(store, snapshots, validator.New(), logr, loc)
}

func registerRoutes(r *gin.Engine, cfg *config.Config, occurrences *service.OccurrenceService, metrics *service.MetricsService) {
	occurrenceHandler := handler.NewOccurrenceHandler(occurrences)
	referenceHandler := handler.NewReferenceHandler(occurrences)
	metricsHandler := handler.NewMetricsHandler(metrics, occurrences, occurrences)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	writeLimit := middleware.RateLimit(cfg.Occurrences.WriteRateLimit, cfg.Occurrences.WriteRateBurst)

	api := r.Group(cfg.APIPrefix)
	occurrenceRoutes := api.Group("/occurrences")
	occurrenceRoutes.GET("", occurrenceHandler.List)
	occurrenceRoutes.GET("/filters", occurrenceHandler.Filters)
	occurrenceRoutes.GET("/:id", occurrenceHandler.Get)
	occurrenceRoutes.POST("", writeLimit, occurrenceHandler.Create)
	occurrenceRoutes.PATCH("/:id/follow-up", writeLimit, middleware.FollowUpRole(), occurrenceHandler.FollowUp)

	references := api.Group("/references")
	references.GET("/teachers", referenceHandler.Teachers)
	references.GET("/rooms", referenceHandler.Rooms)
	references.GET("/students", referenceHandler.Students)

	cacheRoutes := api.Group("/cache")
	cacheRoutes.GET("/stats", metricsHandler.CacheStats)
	cacheRoutes.POST("/invalidate", writeLimit, metricsHandler.InvalidateCache)
}

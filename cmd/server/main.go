package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arclight/postrank/internal/analytics"
	"github.com/arclight/postrank/internal/api/handlers"
	"github.com/arclight/postrank/internal/cache"
	"github.com/arclight/postrank/internal/config"
	"github.com/arclight/postrank/internal/database"
	"github.com/arclight/postrank/internal/health"
	"github.com/arclight/postrank/internal/middleware"
	"github.com/arclight/postrank/internal/pipeline"
	"github.com/arclight/postrank/internal/ranking"
	"github.com/arclight/postrank/internal/repository"
	"github.com/arclight/postrank/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	utils.InitLogger()
	logger := utils.GetLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// The analytics sink is optional. Without it the service still ranks,
	// it just stops logging predictions and shadow metrics.
	var (
		dbManager  *database.Manager
		repos      *repository.RepositoryManager
		redisCache *database.Cache
		checker    *health.HealthChecker
		recorder   analytics.Recorder = analytics.NopRecorder{}
	)

	dbManager, err = database.NewManager(&database.Config{
		DatabaseURL: cfg.Database.URL,
		RedisURL:    cfg.Redis.URL,
		LogLevel:    os.Getenv("LOG_LEVEL"),
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("Analytics store unavailable, running without prediction logging")
	} else {
		defer dbManager.Close()

		if err := dbManager.Migrate(); err != nil {
			logger.WithError(err).Fatal("Database migration failed")
		}

		repos = repository.NewRepositoryManager(dbManager.DB)
		redisCache = database.NewCache(dbManager.Redis, logger)
		checker = health.NewHealthChecker(dbManager, logger)
		recorder = analytics.NewDBRecorder(repos, logger)
	}

	registry := ranking.NewModelRegistry(logger)
	shadow := ranking.NewShadowRanker(cfg.Ranking, registry, recorder, logger)
	mmr := ranking.NewDiversityReranker(cfg.MMR.Lambda, cfg.MMR.Threshold, logger)
	resultsCache := cache.NewResultsCache(time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)

	pipe := pipeline.New(cfg, shadow, mmr, resultsCache, recorder, logger)
	handler := handlers.NewRankingHandler(pipe, repos, redisCache, checker, logger)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(120)
	router.Use(rateLimiter.RateLimit())

	router.GET("/health", handler.HandleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/rerank", handler.HandleRerank)
		v1.GET("/conversations/:id/results", handler.HandleConversationResults)
		v1.GET("/cache/stats", handler.HandleCacheStats)
		v1.GET("/metrics/shadow", handler.HandleShadowMetrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if checker != nil {
		go checker.PeriodicHealthCheck(ctx, time.Minute)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("Starting post-ranking server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/api"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/api/handlers"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/auth"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/cache"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/dataset"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/db"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/health"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/logger"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matchconfig"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/matching"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/metrics"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/repository"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/scheduler"
	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// A missing .env file is fine; the environment may already be populated
	_ = godotenv.Load()

	// Load and validate configuration first (before logger)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Logger)

	logger.Info().
		Str("environment", cfg.Logger.Environment).
		Str("log_level", cfg.Logger.Level).
		Msg("configuration loaded successfully")

	ctx := context.Background()

	// Matching engine
	store := matchconfig.NewStore(matchconfig.Sources{
		MatchingPath:   cfg.Resolver.MatchingPath,
		CountriesPath:  cfg.Resolver.CountriesPath,
		AlgorithmsPath: cfg.Resolver.AlgorithmsPath,
	})

	var engineOpts []matching.Option
	if cfg.Features.EnableMetrics {
		engineOpts = append(engineOpts, matching.WithObserver(metrics.Recorder{}))
	}

	var redisStore *cache.RedisStore
	if cfg.Redis.URL != "" {
		redisStore, err = cache.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.KeyPrefix, cfg.Redis.Timeout)
		if err != nil {
			logger.Warn().Err(err).Msg("shared result cache unavailable, continuing with in-process cache only")
		} else {
			defer redisStore.Close()
			engineOpts = append(engineOpts, matching.WithRemoteCache(redisStore))
			logger.Info().Msg("shared result cache connected")
		}
	}

	resolver, err := service.NewResolverService(store, engineOpts...)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize resolver")
	}
	logger.Info().Str("config_version", resolver.Version()).Msg("resolver ready")

	healthChecker := health.NewHealthChecker(cfg.Database.HealthTimeout, resolver.Version)
	if redisStore != nil {
		healthChecker.Register("redis", health.PingFunc(redisStore.Ping))
	}

	// Reference dataset store (feature-flagged)
	var datasetHandler *handlers.DatasetHandler
	if cfg.Features.EnableDatasetStore {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}

		database, err := db.NewDatabase(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer database.Close()
		logger.Info().Msg("database connected successfully")

		entityRepo := repository.NewReferenceEntityRepository(database.Pool)
		datasetMatcher := service.NewDatasetMatchService(entityRepo, resolver)
		importer := dataset.NewImporter(entityRepo)
		datasetHandler = handlers.NewDatasetHandler(datasetMatcher, importer, entityRepo)

		healthChecker.Register("database", health.PingFunc(database.HealthCheck))
	}

	resolveHandler := handlers.NewResolveHandler(resolver)

	// Background jobs
	if cfg.Features.EnableScheduler {
		cronScheduler := scheduler.NewScheduler(cfg.Scheduler, resolver, resolver)
		if err := cronScheduler.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start scheduler")
		}
		defer cronScheduler.Stop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(api.RequestIDMiddleware())
	router.Use(api.LoggingMiddleware())
	router.Use(api.CORSMiddleware(cfg.CORS))
	router.Use(api.ErrorHandlerMiddleware())

	router.GET("/health", healthChecker.Handler)
	if cfg.Features.EnableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	v1.Use(auth.APIKeyMiddleware(cfg))
	{
		match := v1.Group("/match")
		{
			match.POST("/score", resolveHandler.Score)
			match.POST("/batch", resolveHandler.BatchScore)
			match.POST("/equivalence", resolveHandler.Equivalence)
		}

		normalize := v1.Group("/normalize")
		{
			normalize.POST("/country", resolveHandler.NormalizeCountry)
			normalize.POST("/entity", resolveHandler.NormalizeEntity)
		}

		configRoutes := v1.Group("/config")
		{
			configRoutes.GET("/validate", resolveHandler.ValidateConfig)
			configRoutes.GET("/value", resolveHandler.GetConfigValue)
			configRoutes.POST("/reload", resolveHandler.ReloadConfig)
		}

		v1.GET("/cache/stats", resolveHandler.CacheStats)

		if datasetHandler != nil {
			datasets := v1.Group("/datasets")
			{
				datasets.POST("/match", datasetHandler.Match)
				datasets.POST("/import", datasetHandler.Import)
				datasets.GET("/stats", datasetHandler.Stats)
				datasets.GET("/entities/:id", datasetHandler.GetEntity)
			}
		}
	}

	addr := cfg.GetBindAddress()
	// Use a listener so we can discover the selected port when PORT=0
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", addr).Msg("failed to bind listener")
	}

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		_ = ln.Close()
		logger.Fatal().Msg("failed to determine TCP address")
	}
	selectedPort := tcpAddr.Port

	srv := &http.Server{
		Addr:    ln.Addr().String(),
		Handler: router,
	}

	go func() {
		logger.Info().
			Int("port", selectedPort).
			Str("addr", cfg.Server.Host).
			Msg("starting server")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")

	// Print the selected port on graceful exit for supervising processes
	fmt.Printf("PORT=%d\n", selectedPort) //nolint:forbidigo // Intentional stdout output for supervisor
}

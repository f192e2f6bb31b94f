package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/analysis"
	"github.com/creatorpulse/creatorpulse/internal/api"
	"github.com/creatorpulse/creatorpulse/internal/cache"
	"github.com/creatorpulse/creatorpulse/internal/db"
	"github.com/creatorpulse/creatorpulse/internal/platform"
	"github.com/creatorpulse/creatorpulse/internal/progress"
	"github.com/creatorpulse/creatorpulse/internal/sync"
	"github.com/creatorpulse/creatorpulse/pkg/config"
	"github.com/creatorpulse/creatorpulse/pkg/logging"
	"github.com/creatorpulse/creatorpulse/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting CreatorPulse API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()
	if err := database.AutoMigrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// The progress channel rides Redis pub/sub so jobs are observable across
	// processes; without Redis it degrades to in-process delivery
	hub := progress.NewHub()
	var emitter progress.Emitter = hub
	if client := redisCache.Client(); client != nil {
		bus := progress.NewBus(hub, client)
		defer bus.Close()
		emitter = bus
	} else {
		logger.Warn("Redis disabled, job events are visible in this process only")
	}

	// Platform and analysis clients
	platformClient, err := platform.New(&cfg.Platform)
	if err != nil {
		logger.Fatal("Failed to create platform client", zap.Error(err))
	}
	analysisClient, err := analysis.New(&cfg.Analysis)
	if err != nil {
		logger.Fatal("Failed to create analysis client", zap.Error(err))
	}

	// Sync pipeline
	repo := db.NewRepository(database.DB)
	enricher := sync.NewEnricher(analysisClient, db.NewSnapshotRepository(repo), redisCache, &cfg.Sync)
	registry := sync.NewRegistry(emitter)
	pipeline := sync.NewPipeline(cfg, database, platformClient, sync.EnvCredentials{}, enricher, registry)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	router := api.NewRouter(pipeline, registry, hub, database, &cfg.Server)
	router.SetupRoutes(engine)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

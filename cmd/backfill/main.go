package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/creatorpulse/creatorpulse/internal/analysis"
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
	accountID := flag.Int64("account", 0, "account id to sync")
	limit := flag.Int("limit", 0, "max posts to fetch (0 uses the configured default)")
	timeout := flag.Duration("timeout", 30*time.Minute, "abort if the sync has not finished in time")
	flag.Parse()

	if *accountID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: backfill -account <id> [-limit <n>]")
		os.Exit(2)
	}

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
	logger.Info("Starting CreatorPulse backfill", zap.Int64("account_id", *accountID))

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

	// Redis is optional here; the enrichment cache just misses without it
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	platformClient, err := platform.New(&cfg.Platform)
	if err != nil {
		logger.Fatal("Failed to create platform client", zap.Error(err))
	}
	analysisClient, err := analysis.New(&cfg.Analysis)
	if err != nil {
		logger.Fatal("Failed to create analysis client", zap.Error(err))
	}

	hub := progress.NewHub()
	repo := db.NewRepository(database.DB)
	enricher := sync.NewEnricher(analysisClient, db.NewSnapshotRepository(repo), redisCache, &cfg.Sync)
	registry := sync.NewRegistry(hub)
	pipeline := sync.NewPipeline(cfg, database, platformClient, sync.EnvCredentials{}, enricher, registry)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	jobID, err := pipeline.StartSync(ctx, *accountID, *limit)
	if err != nil {
		logger.Fatal("Failed to start sync", zap.Error(err))
	}

	// Subscribe before the job makes progress so no events are missed
	events, unsubscribe := hub.Subscribe(jobID)
	defer unsubscribe()

	logger.Info("Sync started", zap.String("job_id", jobID))

	// The job may reach its terminal event before the subscription lands;
	// polling the registry covers that window
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Fatal("Timed out waiting for sync to finish", zap.String("job_id", jobID))
		case <-ticker.C:
			if registry.Get(jobID) == nil {
				logger.Info("Sync finished", zap.String("job_id", jobID))
				return
			}
		case ev, ok := <-events:
			if !ok {
				logger.Fatal("Event stream closed without a terminal event", zap.String("job_id", jobID))
			}
			switch ev.Type {
			case progress.EventProgress:
				logger.Info("Sync progress",
					zap.Int("percent", ev.Percent),
					zap.String("message", ev.Message))
			case progress.EventComplete:
				logger.Info("Sync complete",
					zap.String("job_id", jobID),
					zap.Any("summary", ev.Summary))
				return
			case progress.EventError:
				logger.Error("Sync failed",
					zap.String("job_id", jobID),
					zap.String("code", ev.ErrorCode),
					zap.String("message", ev.Message))
				os.Exit(1)
			}
		}
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/counterflow/vivacity/internal/api"
	"github.com/counterflow/vivacity/internal/config"
	"github.com/counterflow/vivacity/internal/database"
	"github.com/counterflow/vivacity/internal/ingest"
	"github.com/counterflow/vivacity/internal/scheduler"
)

// Command vivacityd ingests Vivacity traffic-sensor data into TimescaleDB.
//
// The service supports:
//   - Periodic incremental ingestion per configured region
//   - Sensor metadata sync with parsed camera identity
//   - One-shot historical backfill (-backfill)
//   - Prometheus metrics for the sub-batch fan-out
//
// Usage:
//
//	vivacityd [flags]
//
// The flags are:
//
//	-config string
//	      path to config file (default "config.yaml")
//	-backfill
//	      run the configured historical backfill before scheduling
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	backfill := flag.Bool("backfill", false, "run historical backfill before scheduling")
	flag.Parse()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(appConfig.Logging)

	repo, err := database.NewPostgresRepo(appConfig.Database.ConnString())
	if err != nil {
		logger.Fatalf("Failed to create repository: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestors, err := buildIngestors(appConfig, repo, logger)
	if err != nil {
		logger.Fatalf("Failed to build ingestors: %v", err)
	}
	if len(ingestors) == 0 {
		logger.Fatal("No regions configured")
	}

	// Sub-batch skip counters are the only visibility into partial results,
	// so metrics are not optional.
	prometheus.MustRegister(api.SubBatchRequests, api.SubBatchSkips, api.RecordsFetched)
	go serveMetrics(appConfig.Metrics.Port, logger)

	errChan := make(chan error, 1)

	if *backfill {
		go func() {
			for _, ing := range ingestors {
				if _, err := ing.SyncMetadata(ctx); err != nil {
					errChan <- fmt.Errorf("metadata sync error: %w", err)
					return
				}
				rows, err := ing.Backfill(ctx, appConfig.Scheduler.BackfillDays)
				if err != nil {
					errChan <- fmt.Errorf("backfill error: %w", err)
					return
				}
				logger.WithFields(logrus.Fields{
					"region": ing.Region(),
					"rows":   rows,
					"days":   appConfig.Scheduler.BackfillDays,
				}).Info("Backfill complete")
			}
		}()
	}

	sched := scheduler.NewScheduler(ctx, ingestors, logger, appConfig.Scheduler.Schedule, appConfig.Scheduler.Lookback())
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"regions":  len(ingestors),
		"schedule": appConfig.Scheduler.Schedule,
	}).Info("Ingestion service started")

	go handleShutdown(ctx, cancel, sched, logger, repo)

	if err := <-errChan; err != nil {
		logger.Fatalf("Service error: %v", err)
	}
}

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func buildIngestors(appConfig *config.Config, repo database.TrafficRepository, logger *logrus.Logger) ([]*ingest.Ingestor, error) {
	ingestors := make([]*ingest.Ingestor, 0, len(appConfig.Regions))
	for _, region := range appConfig.Regions {
		cfg := api.DefaultClientConfig(region.Code)
		cfg.BaseURL = appConfig.API.BaseURL
		cfg.Timeout = appConfig.API.Timeout()
		cfg.BatchSize = appConfig.API.BatchSize
		cfg.MaxBatchDays = appConfig.API.MaxBatchDays
		cfg.Concurrency = appConfig.API.Concurrency
		cfg.RateLimit = appConfig.API.RateLimit
		cfg.RateLimitBurst = appConfig.API.RateLimitBurst
		cfg.Logger = logger

		client, err := api.NewClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region.Code, err)
		}

		ingestor, err := ingest.New(client, repo, logger, region.Name, region.TimeBucket)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region.Code, err)
		}
		ingestors = append(ingestors, ingestor)
	}
	return ingestors, nil
}

func serveMetrics(port int, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logger.WithField("port", port).Info("Serving metrics")
	if err := http.ListenAndServe(fmt.Sprintf(":%d", port), mux); err != nil {
		logger.WithError(err).Error("Metrics server stopped")
	}
}

// Handle graceful shutdown
func handleShutdown(ctx context.Context, cancel context.CancelFunc, sched *scheduler.Scheduler, logger *logrus.Logger, repo database.TrafficRepository) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Println("Context canceled, initiating shutdown")
	case sig := <-sigChan:
		logger.Printf("Received signal %v, initiating shutdown", sig)
	}

	logger.Println("Stopping scheduler...")
	sched.Stop()
	cancel()

	if err := repo.Close(); err != nil {
		logger.WithError(err).Error("Failed to close repository")
	}
	logger.Println("Shutdown complete")
	os.Exit(0)
}

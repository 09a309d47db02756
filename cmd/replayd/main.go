package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	apihttp "github.com/flowmesh/replayd/internal/api/http"
	"github.com/flowmesh/replayd/internal/config"
	"github.com/flowmesh/replayd/internal/logclient"
	"github.com/flowmesh/replayd/internal/logger"
	"github.com/flowmesh/replayd/internal/metrics"
	"github.com/flowmesh/replayd/internal/runner"
	"github.com/flowmesh/replayd/internal/store"
	"github.com/flowmesh/replayd/internal/supervisor"
	"github.com/flowmesh/replayd/internal/tracing"
	"github.com/flowmesh/replayd/internal/version"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		Rotation:   cfg.Logging.Rotation,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log := logger.WithComponent("main")
	log.Info().Msg(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      "replayd",
		ServiceVersion:   version.Version,
		Endpoint:         cfg.Tracing.Endpoint,
		Insecure:         cfg.Tracing.Insecure,
		ExporterType:     cfg.Tracing.ExporterType,
		SamplingStrategy: cfg.Tracing.SamplingStrategy,
		SamplingRate:     cfg.Tracing.SamplingRate,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	jobStore := store.NewStore(cfg.Storage.DataDir)
	if err := jobStore.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job store")
	}

	// Embedded log backend; a broker-backed client plugs in here
	logs := logclient.NewInMemory()

	var jobMet *metrics.JobMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		jobMet = metrics.NewJobMetrics(collector)
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, collector.GetRegistry())
		if err := metricsServer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start metrics server")
		}
	}

	jobRunner := runner.New(jobStore, logs, runner.Config{
		BatchSize:            cfg.Replay.BatchSize,
		PartitionParallelism: cfg.Replay.PartitionParallelism,
		TransientRetries:     cfg.Replay.TransientRetries,
		TransientBackoff:     cfg.Replay.TransientBackoff,
		ThroughputWindow:     cfg.Replay.ThroughputWindow,
	})

	sup := supervisor.New(jobStore, jobRunner, supervisor.Config{
		Workers:                cfg.Replay.Workers,
		PollInterval:           cfg.Replay.PollInterval,
		HistoryRetention:       cfg.Storage.HistoryRetention,
		RetentionSweepInterval: cfg.Storage.RetentionSweepInterval,
	}, jobMet)
	if err := sup.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start supervisor")
	}

	httpServer := apihttp.NewServer(cfg.Server.HTTPAddr, cfg.Server.ReadHeaderTimeout, sup, sup, jobStore)
	if err := httpServer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start HTTP server")
	}

	log.Info().Msg("replayd started")
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := sup.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Supervisor shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Metrics server shutdown error")
		}
	}
	if err := jobStore.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Job store shutdown error")
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Tracing shutdown error")
	}

	log.Info().Msg("replayd stopped")
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/avifconv/internal/bootstrap"
	"github.com/dunamismax/avifconv/internal/config"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/telemetry"
	"github.com/dunamismax/avifconv/internal/webhook"
	"github.com/dunamismax/avifconv/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[worker] ", log.LstdFlags|log.Lmsgprefix)
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName + "-worker",
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Printf("tracing shutdown failed: %v", err)
		}
	}()

	if err := pipeline.Startup(cfg.Encoder.Threads); err != nil {
		logger.Fatalf("encoder runtime startup failed: %v", err)
	}
	defer pipeline.Shutdown()

	opts, err := bootstrap.PipelineOptions(cfg.Encoder)
	if err != nil {
		logger.Fatalf("invalid encoder config: %v", err)
	}
	files, err := bootstrap.OpenFiles(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("open file storage failed: %v", err)
	}
	conversions, closeConversions, err := bootstrap.OpenConversions(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("open conversion store failed: %v", err)
	}
	defer closeConversions()

	processor, err := pipeline.NewProcessor(pipeline.StoreFetcher{Store: files}, pipeline.StoreEmitter{Store: files}, opts)
	if err != nil {
		logger.Fatalf("build processor failed: %v", err)
	}

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, processor, conversions, webhookClient)
	if err != nil {
		logger.Fatalf("worker setup failed: %v", err)
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Worker.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("metrics server failed: %v", err)
		}
	}()
	defer metricsServer.Close()

	logger.Printf(
		"starting worker concurrency=%d max_active_jobs=%d queue=%s redis=%s format=%s",
		cfg.Worker.Concurrency,
		cfg.Worker.MaxActiveJobs,
		cfg.Queue.Name,
		cfg.Queue.RedisAddr,
		opts.Format,
	)

	if err := srv.Run(); err != nil {
		logger.Printf("worker failed: %v", err)
		return
	}
}

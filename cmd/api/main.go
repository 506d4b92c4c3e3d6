package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/avifconv/internal/api"
	"github.com/dunamismax/avifconv/internal/bootstrap"
	"github.com/dunamismax/avifconv/internal/config"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/queue"
	"github.com/dunamismax/avifconv/internal/ratelimit"
	"github.com/dunamismax/avifconv/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Exporter:     cfg.Tracing.Exporter,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}

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
	defer func() {
		if err := closeConversions(); err != nil {
			logger.Printf("conversion store close error: %v", err)
		}
	}()

	processor, err := pipeline.NewProcessor(pipeline.StoreFetcher{Store: files}, pipeline.StoreEmitter{Store: files}, opts)
	if err != nil {
		logger.Fatalf("build processor failed: %v", err)
	}

	serverOpts := api.Options{
		Logger:         logger,
		Processor:      processor,
		Files:          files,
		Conversions:    conversions,
		QueueName:      cfg.Queue.Name,
		Tracer:         telemetry.Tracer(),
		MaxUploadBytes: cfg.API.MaxUploadBytes,
		MaxConcurrent:  cfg.API.MaxConcurrentJobs,
		DefaultQuality: float32(cfg.API.DefaultQuality),
	}

	if cfg.API.AsyncEnabled {
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.Printf("queue client close error: %v", err)
			}
		}()
		serverOpts.Queue = queueClient
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, cfg.RateLimit.KeyPrefix)
		if err != nil {
			logger.Fatalf("rate limiter setup failed: %v", err)
		}
		serverOpts.RateLimiter = limiter
	}

	app, err := api.NewServer(serverOpts)
	if err != nil {
		logger.Fatalf("api setup failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf(
			"listening on %s format=%s speed=%d max_upload_bytes=%d async=%t",
			cfg.API.Addr, opts.Format, opts.Speed, cfg.API.MaxUploadBytes, cfg.API.AsyncEnabled,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Printf("tracing shutdown failed: %v", err)
	}
}

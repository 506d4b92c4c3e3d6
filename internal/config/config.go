package config

import (
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/hibiken/asynq"
)

type Config struct {
	API       APIConfig
	Encoder   EncoderConfig
	Queue     QueueConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Tracing   TracingConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
}

type APIConfig struct {
	Addr              string
	MaxUploadBytes    int64
	MaxConcurrentJobs int
	DefaultQuality    float64
	AsyncEnabled      bool
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// EncoderConfig holds the process-wide encoder overrides. The per-request
// base quality comes from the request.
type EncoderConfig struct {
	Format             string
	Speed              int
	ColorSpace         string
	Threads            int
	PremultipliedAlpha bool
}

type QueueConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Name          string
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int
	MaxActiveJobs int
	MetricsAddr   string
}

// StorageConfig selects where sources and outputs live. An empty Endpoint
// keeps everything in FilesDir.
type StorageConfig struct {
	FilesDir  string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// DatabaseConfig with an empty DSN keeps conversion records in memory.
type DatabaseConfig struct {
	DSN string
}

type TracingConfig struct {
	ServiceName  string
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
	SampleRatio  float64
}

type RateLimitConfig struct {
	Enabled   bool
	Capacity  int
	Window    time.Duration
	KeyPrefix string
}

type WebhookConfig struct {
	SigningSecret  string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func Load() Config {
	defaultWorkerSlots := max(1, runtime.NumCPU()/2)

	return Config{
		API: APIConfig{
			Addr:              env("AVIFCONV_API_ADDR", "127.0.0.1:3030"),
			MaxUploadBytes:    int64(envInt("AVIFCONV_MAX_UPLOAD_BYTES", 5_000_000)),
			MaxConcurrentJobs: envInt("AVIFCONV_MAX_CONCURRENT_TRANSCODES", defaultWorkerSlots),
			DefaultQuality:    envFloat("AVIFCONV_DEFAULT_QUALITY", 80),
			AsyncEnabled:      envBool("AVIFCONV_ASYNC_ENABLED", false),
			ReadTimeout:       envDuration("AVIFCONV_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:      envDuration("AVIFCONV_WRITE_TIMEOUT", 60*time.Second),
		},
		Encoder: EncoderConfig{
			Format:             env("AVIFCONV_OUTPUT_FORMAT", "avif"),
			Speed:              envInt("AVIFCONV_ENCODER_SPEED", 4),
			ColorSpace:         env("AVIFCONV_COLOR_SPACE", "rgb"),
			Threads:            envInt("AVIFCONV_ENCODER_THREADS", 0),
			PremultipliedAlpha: envBool("AVIFCONV_PREMULTIPLIED_ALPHA", false),
		},
		Queue: QueueConfig{
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
			Name:          env("ASYNC_QUEUE", "default"),
		},
		Worker: WorkerConfig{
			Concurrency:   envInt("WORKER_CONCURRENCY", max(2, runtime.NumCPU())),
			MaxActiveJobs: envInt("WORKER_MAX_ACTIVE_JOBS", defaultWorkerSlots),
			MetricsAddr:   env("WORKER_METRICS_ADDR", ":9091"),
		},
		Storage: StorageConfig{
			FilesDir:  env("AVIFCONV_FILES_DIR", "./files"),
			Endpoint:  env("MINIO_ENDPOINT", ""),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "avifconv"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Database: DatabaseConfig{
			DSN: env("POSTGRES_DSN", ""),
		},
		Tracing: TracingConfig{
			ServiceName:  env("OTEL_SERVICE_NAME", "avifconv"),
			Exporter:     env("OTEL_TRACES_EXPORTER", "none"),
			OTLPEndpoint: env("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			OTLPInsecure: envBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  envFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		RateLimit: RateLimitConfig{
			Enabled:   envBool("RATE_LIMIT_ENABLED", false),
			Capacity:  envInt("RATE_LIMIT_CAPACITY", 30),
			Window:    envDuration("RATE_LIMIT_WINDOW", time.Minute),
			KeyPrefix: env("RATE_LIMIT_KEY_PREFIX", "avifconv:ratelimit"),
		},
		Webhook: WebhookConfig{
			SigningSecret:  env("WEBHOOK_SIGNING_SECRET", ""),
			Timeout:        envDuration("WEBHOOK_TIMEOUT", 10*time.Second),
			MaxAttempts:    envInt("WEBHOOK_MAX_ATTEMPTS", 5),
			InitialBackoff: envDuration("WEBHOOK_INITIAL_BACKOFF", time.Second),
			MaxBackoff:     envDuration("WEBHOOK_MAX_BACKOFF", 30*time.Second),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

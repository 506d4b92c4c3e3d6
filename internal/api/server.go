package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/queue"
	"github.com/dunamismax/avifconv/internal/ratelimit"
	"github.com/dunamismax/avifconv/internal/storage"
	"github.com/dunamismax/avifconv/internal/store"
	"github.com/hibiken/asynq"
	"github.com/klauspost/compress/gzhttp"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxUploadBytes = 5_000_000

type queueEnqueuer interface {
	EnqueueTranscode(ctx context.Context, payload queue.TranscodePayload) (*asynq.TaskInfo, error)
}

// Options wires the server's collaborators. Queue and RateLimiter are
// optional; without a queue the async routes answer 503.
type Options struct {
	Logger         *log.Logger
	Processor      *pipeline.Processor
	Files          storage.Store
	Conversions    store.ConversionStore
	Queue          queueEnqueuer
	QueueName      string
	RateLimiter    ratelimit.Limiter
	Tracer         trace.Tracer
	MaxUploadBytes int64
	MaxConcurrent  int
	DefaultQuality float32
}

type Server struct {
	logger         *log.Logger
	processor      *pipeline.Processor
	files          storage.Store
	conversions    store.ConversionStore
	queueClient    queueEnqueuer
	queueName      string
	rateLimiter    ratelimit.Limiter
	tracer         trace.Tracer
	metrics        *metrics
	sem            chan struct{}
	maxUploadBytes int64
	defaultQuality float32
	mux            *http.ServeMux
}

func NewServer(opts Options) (*Server, error) {
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}
	if opts.Files == nil {
		return nil, errors.New("file store is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Conversions == nil {
		opts.Conversions = store.NewMemoryConversionStore()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.DefaultQuality <= 0 {
		opts.DefaultQuality = pipeline.DefaultQuality
	}

	s := &Server{
		logger:         opts.Logger,
		processor:      opts.Processor,
		files:          opts.Files,
		conversions:    opts.Conversions,
		queueClient:    opts.Queue,
		queueName:      opts.QueueName,
		rateLimiter:    opts.RateLimiter,
		tracer:         opts.Tracer,
		metrics:        newMetrics(),
		sem:            make(chan struct{}, max(1, opts.MaxConcurrent)),
		maxUploadBytes: opts.MaxUploadBytes,
		defaultQuality: opts.DefaultQuality,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the mux wrapped in tracing, metrics, rate limiting and
// JSON compression, outermost first.
func (s *Server) Handler() http.Handler {
	gzip, err := gzhttp.NewWrapper(gzhttp.ContentTypes([]string{"application/json"}))
	var inner http.Handler = s.mux
	if err != nil {
		s.logger.Printf("gzip wrapper disabled err=%v", err)
	} else {
		inner = gzip(s.mux)
	}
	return s.withTracing(s.metrics.withHTTPMetrics(s.withRateLimit(inner)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("GET /files/{name}", s.handleFile)
	s.mux.HandleFunc("POST /v1/conversions", s.handleCreateConversion)
	s.mux.HandleFunc("GET /v1/conversions/{id}", s.handleGetConversion)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// acquire takes a transcode slot, giving up when the request goes away.
func (s *Server) acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		s.metrics.inflightTranscodes.Inc()
		return func() {
			s.metrics.inflightTranscodes.Dec()
			<-s.sem
		}, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for transcode slot: %w", ctx.Err())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/avifconv/internal/config"
	"github.com/dunamismax/avifconv/internal/domain"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/queue"
	"github.com/dunamismax/avifconv/internal/storage"
	"github.com/dunamismax/avifconv/internal/store"
	"github.com/dunamismax/avifconv/internal/telemetry"
	"github.com/dunamismax/avifconv/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	processor     *pipeline.Processor
	conversions   store.ConversionStore
	webhookClient webhookSender
	metrics       *metrics
	tracer        trace.Tracer
}

type webhookSender interface {
	Send(ctx context.Context, endpoint string, event webhook.Event) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	processor *pipeline.Processor,
	conversions store.ConversionStore,
	webhookClient webhookSender,
) (*Server, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if conversions == nil {
		return nil, fmt.Errorf("conversion store is required")
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		processor:     processor,
		conversions:   conversions,
		webhookClient: webhookClient,
		metrics:       newMetrics(),
		tracer:        telemetry.Tracer(),
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeTranscode, s.handleTranscode)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleTranscode(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()

	payload, err := queue.ParseTranscodePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	format, err := pipeline.ParseOutputFormat(payload.OutputFormat)
	if err != nil {
		return fmt.Errorf("conversion %s: %v: %w", payload.ConversionID, err, asynq.SkipRetry)
	}

	outcome := domain.StatusFailed
	ctx, span := s.tracer.Start(ctx, "worker.transcode", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("conversion.id", payload.ConversionID),
		attribute.String("conversion.source_key", payload.SourceKey),
		attribute.String("conversion.format", string(format)),
	)
	defer span.End()
	defer func() {
		s.metrics.conversionDuration.WithLabelValues(string(format), outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.conversionsTotal.WithLabelValues(string(format), outcome).Inc()
	}()

	s.sem <- struct{}{}
	s.metrics.activeConversions.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeConversions.Dec()
	}()

	conv, ok, err := s.conversions.Get(ctx, payload.ConversionID)
	if err != nil {
		return fmt.Errorf("load conversion %s: %w", payload.ConversionID, err)
	}
	if !ok {
		return fmt.Errorf("conversion %s not found: %w", payload.ConversionID, asynq.SkipRetry)
	}
	if conv.Terminal() {
		s.logger.Printf("skipping finished conversion id=%s status=%s", conv.ID, conv.Status)
		outcome = conv.Status
		return nil
	}

	s.logger.Printf("Working... id=%s source_key=%s format=%s quality=%.1f", conv.ID, payload.SourceKey, format, payload.Quality)
	conv.Status = domain.StatusProcessing
	conv = s.update(ctx, conv)

	result, err := s.processor.Process(ctx, pipeline.Request{
		ConversionID: payload.ConversionID,
		SourceKey:    payload.SourceKey,
		Quality:      payload.Quality,
		Format:       format,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcode failed")
		return s.fail(ctx, conv, payload, err)
	}

	out := result.Output
	conv.Status = domain.StatusSucceeded
	conv.SourceFormat = out.SourceFormat.String()
	conv.OutputKey = result.OutputKey
	conv.OutputBytes = out.TotalBytes()
	conv.ColorBytes = out.ColorBytes
	conv.AlphaBytes = out.AlphaBytes
	conv.Width = out.Width
	conv.Height = out.Height
	conv.Error = ""
	conv = s.update(ctx, conv)

	s.logger.Printf("Success: %s id=%s", out.Summary(), conv.ID)
	s.recordOutput(result)

	outcome = domain.StatusSucceeded
	span.SetStatus(codes.Ok, "converted")

	// Delivery failures are logged; the conversion itself already succeeded.
	_ = s.dispatchWebhook(ctx, payload.WebhookURL, conv)
	return nil
}

// fail records a failed attempt. Input errors end the task; other errors
// are retried and only marked failed on the last attempt.
func (s *Server) fail(ctx context.Context, conv domain.Conversion, payload queue.TranscodePayload, cause error) error {
	stage := string(pipeline.StageOf(cause))
	if stage == "" {
		stage = "fetch"
	}
	s.metrics.failuresByStage.WithLabelValues(stage).Inc()

	permanent := pipeline.IsClientError(cause) || errors.Is(cause, storage.ErrNotFound)
	if !permanent && !finalAttempt(ctx) {
		s.logger.Printf("conversion attempt failed id=%s stage=%s err=%v", conv.ID, stage, cause)
		return fmt.Errorf("transcode %s: %w", conv.ID, cause)
	}

	conv.Status = domain.StatusFailed
	conv.Error = cause.Error()
	conv = s.update(ctx, conv)
	s.logger.Printf("conversion failed id=%s stage=%s err=%v", conv.ID, stage, cause)
	_ = s.dispatchWebhook(ctx, payload.WebhookURL, conv)

	if permanent {
		return fmt.Errorf("transcode %s: %v: %w", conv.ID, cause, asynq.SkipRetry)
	}
	return fmt.Errorf("transcode %s: %w", conv.ID, cause)
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func (s *Server) update(ctx context.Context, conv domain.Conversion) domain.Conversion {
	updated, err := s.conversions.Update(ctx, conv)
	if err != nil {
		s.logger.Printf("conversion update failed id=%s status=%s err=%v", conv.ID, conv.Status, err)
		return conv
	}
	return updated
}

func (s *Server) dispatchWebhook(ctx context.Context, endpoint string, conv domain.Conversion) error {
	if endpoint == "" || s.webhookClient == nil {
		return nil
	}

	event := webhook.EventFor(conv)
	if err := s.webhookClient.Send(ctx, endpoint, event); err != nil {
		s.logger.Printf("webhook delivery failed id=%s event=%s err=%v", conv.ID, event.Event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

func (s *Server) recordOutput(result pipeline.Result) {
	out := result.Output
	s.metrics.outputBytesTotal.WithLabelValues(string(out.Format)).Add(float64(out.TotalBytes()))
	s.metrics.colorBytesTotal.Add(float64(out.ColorBytes))
	s.metrics.alphaBytesTotal.Add(float64(out.AlphaBytes))
	if saved := result.SourceBytes - out.TotalBytes(); saved > 0 {
		s.metrics.bytesSavedTotal.Add(float64(saved))
	}
}

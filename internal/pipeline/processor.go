package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrMissingConversionID = errors.New("conversion_id is required")

// Request describes one conversion handed to a Processor.
type Request struct {
	ConversionID string
	SourceKey    string
	Quality      float32
	Format       OutputFormat
}

type Result struct {
	Output      EncodedOutput
	OutputKey   string
	SourceBytes int
	Elapsed     time.Duration
}

// Fetcher loads the source bytes named by a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Emitter persists an encoded output and returns the key it was stored under.
type Emitter interface {
	Emit(ctx context.Context, req Request, out EncodedOutput) (string, error)
}

// Processor wires fetch → transcode → emit, keeping one Transcoder per
// output format so a request can pick its target.
type Processor struct {
	fetcher     Fetcher
	emitter     Emitter
	transcoders map[OutputFormat]*Transcoder
	defaultFmt  OutputFormat
}

func NewProcessor(fetcher Fetcher, emitter Emitter, opts Options) (*Processor, error) {
	if opts.Format == "" {
		opts.Format = OutputAVIF
	}

	transcoders := make(map[OutputFormat]*Transcoder, 2)
	for _, format := range []OutputFormat{OutputAVIF, OutputWebP} {
		formatOpts := opts
		formatOpts.Format = format
		t, err := NewTranscoder(formatOpts)
		if err != nil {
			return nil, fmt.Errorf("build %s transcoder: %w", format, err)
		}
		transcoders[format] = t
	}

	return &Processor{
		fetcher:     fetcher,
		emitter:     emitter,
		transcoders: transcoders,
		defaultFmt:  opts.Format,
	}, nil
}

// NewProcessorWithTranscoder serves every request with t regardless of the
// requested format.
func NewProcessorWithTranscoder(fetcher Fetcher, emitter Emitter, t *Transcoder) *Processor {
	format := t.Options().Format
	return &Processor{
		fetcher:     fetcher,
		emitter:     emitter,
		transcoders: map[OutputFormat]*Transcoder{format: t},
		defaultFmt:  format,
	}
}

// Process fetches the source named by req and converts it.
func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.ConversionID) == "" {
		return Result{}, ErrMissingConversionID
	}
	if p.fetcher == nil {
		return Result{}, errors.New("no fetcher configured")
	}

	source, err := p.fetcher.Fetch(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch stage: %w", err)
	}
	return p.ProcessBytes(ctx, req, source)
}

// ProcessBytes converts source bytes already in memory and emits the result.
func (p *Processor) ProcessBytes(ctx context.Context, req Request, source []byte) (Result, error) {
	if strings.TrimSpace(req.ConversionID) == "" {
		return Result{}, ErrMissingConversionID
	}

	transcoder := p.transcoderFor(req.Format)
	if transcoder == nil {
		return Result{}, &StageError{Stage: StageEncoding, Err: fmt.Errorf("%w: %q", ErrUnsupportedOutputFormat, req.Format)}
	}

	ctx, span := telemetry.Tracer().Start(ctx, "transcode")
	span.SetAttributes(
		attribute.String("conversion.id", req.ConversionID),
		attribute.String("conversion.format", string(transcoder.Options().Format)),
		attribute.Float64("conversion.quality", float64(req.Quality)),
		attribute.Int("conversion.source_bytes", len(source)),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	started := time.Now()
	out, err := transcoder.Transcode(source, req.Quality)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(StageOf(err)))
		return Result{}, err
	}
	elapsed := time.Since(started)
	span.SetAttributes(
		attribute.Int("conversion.output_bytes", out.TotalBytes()),
		attribute.Int("conversion.color_bytes", out.ColorBytes),
		attribute.Int("conversion.alpha_bytes", out.AlphaBytes),
	)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	result := Result{Output: out, SourceBytes: len(source), Elapsed: elapsed}
	if p.emitter != nil {
		key, err := p.emitter.Emit(ctx, req, out)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "emit")
			return Result{}, fmt.Errorf("emit stage: %w", err)
		}
		result.OutputKey = key
	}
	return result, nil
}

func (p *Processor) transcoderFor(format OutputFormat) *Transcoder {
	if format == "" {
		format = p.defaultFmt
	}
	return p.transcoders[format]
}

// LocalFileFetcher reads SourceKey as a filesystem path.
type LocalFileFetcher struct{}

func (LocalFileFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(req.SourceKey)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", req.SourceKey, err)
	}
	return data, nil
}

// FileEmitter writes the encoded output to Path, or next to the request's
// source with the output extension when Path is empty.
type FileEmitter struct {
	Path string
}

// DefaultOutputPath swaps the source extension for the output one.
// Sources differing only by extension share a default path.
func DefaultOutputPath(source string, format OutputFormat) string {
	return strings.TrimSuffix(source, filepath.Ext(source)) + "." + format.Extension()
}

func (e FileEmitter) Emit(_ context.Context, req Request, out EncodedOutput) (string, error) {
	target := e.Path
	if strings.TrimSpace(target) == "" {
		if req.SourceKey == "" {
			return "", errors.New("output path is required")
		}
		target = DefaultOutputPath(req.SourceKey, out.Format)
	}
	if dir := filepath.Dir(target); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(target, out.Data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return target, nil
}

package telemetry

import (
	"context"
	"testing"
)

func TestSetupTracingDisabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TraceConfig{ServiceName: "avifconv", Exporter: "none"}, nil)
	if err != nil {
		t.Fatalf("SetupTracing() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
}

func TestSetupTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "zipkin"}, nil); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
	if _, err := SetupTracing(context.Background(), TraceConfig{Exporter: "otlp"}, nil); err == nil {
		t.Fatal("expected error for otlp without endpoint")
	}
}

func TestSamplerRatio(t *testing.T) {
	full := sampler(1).Description()
	if sampler(0).Description() != full || sampler(2).Description() != full {
		t.Fatal("expected out-of-range ratios to sample everything")
	}
	if sampler(0.25).Description() == full {
		t.Fatal("expected a fractional ratio to use a ratio sampler")
	}
}

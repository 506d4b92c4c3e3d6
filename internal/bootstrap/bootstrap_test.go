package bootstrap

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/dunamismax/avifconv/internal/config"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/storage"
	"github.com/dunamismax/avifconv/internal/store"
)

func TestPipelineOptions(t *testing.T) {
	opts, err := PipelineOptions(config.EncoderConfig{Format: "webp", Speed: 6, ColorSpace: "ycbcr", Threads: 2, PremultipliedAlpha: true})
	if err != nil {
		t.Fatalf("PipelineOptions() error = %v", err)
	}
	want := pipeline.Options{
		Format:             pipeline.OutputWebP,
		Speed:              6,
		ColorSpace:         pipeline.ColorSpaceYCbCr,
		Threads:            2,
		PremultipliedAlpha: true,
	}
	if opts != want {
		t.Fatalf("PipelineOptions() = %+v, want %+v", opts, want)
	}
}

func TestPipelineOptionsRejectsBadValues(t *testing.T) {
	cases := []config.EncoderConfig{
		{Format: "gif"},
		{ColorSpace: "cmyk"},
		{Speed: 11},
		{Speed: -1},
		{Threads: -2},
	}
	for _, cfg := range cases {
		if _, err := PipelineOptions(cfg); err == nil {
			t.Fatalf("PipelineOptions(%+v) expected error", cfg)
		}
	}
	if _, err := PipelineOptions(config.EncoderConfig{Speed: 11}); !errors.Is(err, pipeline.ErrInvalidSpeed) {
		t.Fatalf("expected ErrInvalidSpeed, got %v", err)
	}
}

func TestOpenLocalDefaults(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	dir := filepath.Join(t.TempDir(), "files")

	files, err := OpenFiles(context.Background(), config.StorageConfig{FilesDir: dir}, logger)
	if err != nil {
		t.Fatalf("OpenFiles() error = %v", err)
	}
	if _, ok := files.(*storage.LocalStore); !ok {
		t.Fatalf("expected *storage.LocalStore, got %T", files)
	}

	conversions, closeFn, err := OpenConversions(context.Background(), config.DatabaseConfig{}, logger)
	if err != nil {
		t.Fatalf("OpenConversions() error = %v", err)
	}
	defer closeFn()
	if _, ok := conversions.(*store.MemoryConversionStore); !ok {
		t.Fatalf("expected memory store, got %T", conversions)
	}
}

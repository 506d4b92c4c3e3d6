// Package bootstrap builds the shared collaborators the binaries wire
// together from a loaded config.
package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dunamismax/avifconv/internal/config"
	"github.com/dunamismax/avifconv/internal/pipeline"
	"github.com/dunamismax/avifconv/internal/storage"
	"github.com/dunamismax/avifconv/internal/store"
)

// PipelineOptions converts the encoder section into transcoder options.
func PipelineOptions(cfg config.EncoderConfig) (pipeline.Options, error) {
	format, err := pipeline.ParseOutputFormat(cfg.Format)
	if err != nil {
		return pipeline.Options{}, err
	}
	colorSpace, err := pipeline.ParseColorSpace(cfg.ColorSpace)
	if err != nil {
		return pipeline.Options{}, err
	}
	if cfg.Speed < 0 || cfg.Speed > pipeline.MaxSpeed {
		return pipeline.Options{}, fmt.Errorf("%w: %d", pipeline.ErrInvalidSpeed, cfg.Speed)
	}
	if cfg.Threads < 0 {
		return pipeline.Options{}, fmt.Errorf("encoder threads must not be negative, got %d", cfg.Threads)
	}

	return pipeline.Options{
		Format:             format,
		Speed:              cfg.Speed,
		ColorSpace:         colorSpace,
		Threads:            cfg.Threads,
		PremultipliedAlpha: cfg.PremultipliedAlpha,
	}, nil
}

// OpenFiles returns the object store when an endpoint is configured and the
// local files directory otherwise.
func OpenFiles(ctx context.Context, cfg config.StorageConfig, logger *log.Logger) (storage.Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		files, err := storage.NewLocalStore(cfg.FilesDir)
		if err != nil {
			return nil, err
		}
		logger.Printf("storage backend=local dir=%s", files.Dir())
		return files, nil
	}

	objects, err := storage.NewObjectStore(storage.ObjectStoreConfig{
		Endpoint: cfg.Endpoint,
		Access:   cfg.AccessKey,
		Secret:   cfg.SecretKey,
		Bucket:   cfg.Bucket,
		UseSSL:   cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	logger.Printf("storage backend=minio endpoint=%s bucket=%s", cfg.Endpoint, objects.Bucket())
	return objects, nil
}

// OpenConversions returns the Postgres store when a DSN is configured and an
// in-memory store otherwise. The returned close func is never nil.
func OpenConversions(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (store.ConversionStore, func() error, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Printf("conversion store=memory")
		return store.NewMemoryConversionStore(), func() error { return nil }, nil
	}

	pg, err := store.NewPostgresConversionStore(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("conversion store=postgres")
	return pg, pg.Close, nil
}

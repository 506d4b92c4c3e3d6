package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
	_ "github.com/lib/pq"
)

const conversionSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversions (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	content_type TEXT NOT NULL,
	source_key TEXT NOT NULL DEFAULT '',
	source_format TEXT NOT NULL DEFAULT '',
	source_bytes INTEGER NOT NULL DEFAULT 0,
	quality REAL NOT NULL,
	output_format TEXT NOT NULL,
	output_key TEXT NOT NULL DEFAULT '',
	output_bytes INTEGER NOT NULL DEFAULT 0,
	color_bytes INTEGER NOT NULL DEFAULT 0,
	alpha_bytes INTEGER NOT NULL DEFAULT 0,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	webhook_url TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

const conversionColumns = `id, status, content_type, source_key, source_format, source_bytes, quality,
	output_format, output_key, output_bytes, color_bytes, alpha_bytes, width, height,
	webhook_url, error, created_at, updated_at`

type PostgresConversionStore struct {
	db *sql.DB
}

func NewPostgresConversionStore(ctx context.Context, dsn string) (*PostgresConversionStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresConversionStore{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresConversionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, conversionSchemaSQL); err != nil {
		return fmt.Errorf("ensure conversions schema: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Close() error {
	return s.db.Close()
}

func (s *PostgresConversionStore) Create(ctx context.Context, conv domain.Conversion) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO conversions (`+conversionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		conv.ID,
		conv.Status,
		conv.ContentType,
		conv.SourceKey,
		conv.SourceFormat,
		conv.SourceBytes,
		conv.Quality,
		conv.OutputFormat,
		conv.OutputKey,
		conv.OutputBytes,
		conv.ColorBytes,
		conv.AlphaBytes,
		conv.Width,
		conv.Height,
		conv.WebhookURL,
		conv.Error,
		conv.CreatedAt,
		conv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversion: %w", err)
	}
	return nil
}

func (s *PostgresConversionStore) Get(ctx context.Context, id string) (domain.Conversion, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+conversionColumns+` FROM conversions WHERE id = $1`,
		id,
	)

	var conv domain.Conversion
	if err := row.Scan(
		&conv.ID,
		&conv.Status,
		&conv.ContentType,
		&conv.SourceKey,
		&conv.SourceFormat,
		&conv.SourceBytes,
		&conv.Quality,
		&conv.OutputFormat,
		&conv.OutputKey,
		&conv.OutputBytes,
		&conv.ColorBytes,
		&conv.AlphaBytes,
		&conv.Width,
		&conv.Height,
		&conv.WebhookURL,
		&conv.Error,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Conversion{}, false, nil
		}
		return domain.Conversion{}, false, fmt.Errorf("query conversion: %w", err)
	}
	return conv, true, nil
}

// Update overwrites the mutable result columns. Identity, source and
// creation time are fixed at Create.
func (s *PostgresConversionStore) Update(ctx context.Context, conv domain.Conversion) (domain.Conversion, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE conversions
		 SET status = $1, source_format = $2, output_key = $3, output_bytes = $4,
		     color_bytes = $5, alpha_bytes = $6, width = $7, height = $8, error = $9, updated_at = $10
		 WHERE id = $11`,
		conv.Status,
		conv.SourceFormat,
		conv.OutputKey,
		conv.OutputBytes,
		conv.ColorBytes,
		conv.AlphaBytes,
		conv.Width,
		conv.Height,
		conv.Error,
		time.Now().UTC(),
		conv.ID,
	)
	if err != nil {
		return domain.Conversion{}, fmt.Errorf("update conversion: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Conversion{}, ErrConversionNotFound
	}

	updated, ok, err := s.Get(ctx, conv.ID)
	if err != nil {
		return domain.Conversion{}, err
	}
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}
	return updated, nil
}

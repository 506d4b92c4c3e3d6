package store

import (
	"context"
	"errors"

	"github.com/dunamismax/avifconv/internal/domain"
)

var ErrConversionNotFound = errors.New("conversion not found")

type ConversionStore interface {
	Create(ctx context.Context, conv domain.Conversion) error
	Get(ctx context.Context, id string) (domain.Conversion, bool, error)
	Update(ctx context.Context, conv domain.Conversion) (domain.Conversion, error)
}

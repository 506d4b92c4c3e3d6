package pipeline

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/dunamismax/avifconv/internal/storage"
)

// StoreFetcher reads sources from a storage.Store.
type StoreFetcher struct {
	Store storage.Store
}

func (f StoreFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if f.Store == nil {
		return nil, errors.New("storage is required")
	}
	return f.Store.Get(ctx, req.SourceKey)
}

// StoreEmitter writes outputs as <prefix>/<conversion id>.<ext>.
type StoreEmitter struct {
	Store        storage.Store
	OutputPrefix string
}

func (e StoreEmitter) Emit(ctx context.Context, req Request, out EncodedOutput) (string, error) {
	if e.Store == nil {
		return "", errors.New("storage is required")
	}
	key := OutputKey(e.OutputPrefix, req.ConversionID, out.Format)
	if err := e.Store.Put(ctx, key, out.Data, out.Format.ContentType()); err != nil {
		return "", err
	}
	return key, nil
}

// OutputKey names the stored output for a conversion.
func OutputKey(prefix, conversionID string, format OutputFormat) string {
	name := sanitizePathToken(conversionID) + "." + format.Extension()
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func sanitizePathToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

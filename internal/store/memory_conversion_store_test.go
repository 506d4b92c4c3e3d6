package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
)

func TestMemoryConversionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConversionStore()

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	conv := domain.Conversion{
		ID:           "c1",
		Status:       domain.StatusQueued,
		ContentType:  domain.ContentTypePNG,
		Quality:      80,
		OutputFormat: "avif",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := s.Create(ctx, conv); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := s.Create(ctx, conv); err == nil {
		t.Fatal("expected duplicate Create to fail")
	}

	conv.Status = domain.StatusSucceeded
	conv.OutputBytes = 1200
	conv.CreatedAt = time.Time{}
	updated, err := s.Update(ctx, conv)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !updated.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt changed to %v", updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(created) {
		t.Fatalf("UpdatedAt not advanced: %v", updated.UpdatedAt)
	}

	got, ok, err := s.Get(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if got.Status != domain.StatusSucceeded || got.OutputBytes != 1200 {
		t.Fatalf("unexpected stored conversion: %+v", got)
	}
}

func TestMemoryConversionStoreUpdateMissing(t *testing.T) {
	_, err := NewMemoryConversionStore().Update(context.Background(), domain.Conversion{ID: "missing"})
	if !errors.Is(err, ErrConversionNotFound) {
		t.Fatalf("Update() error = %v, want ErrConversionNotFound", err)
	}
}

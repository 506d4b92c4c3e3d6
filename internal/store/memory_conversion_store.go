package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
)

type MemoryConversionStore struct {
	mu    sync.RWMutex
	convs map[string]domain.Conversion
}

func NewMemoryConversionStore() *MemoryConversionStore {
	return &MemoryConversionStore{
		convs: make(map[string]domain.Conversion),
	}
}

func (s *MemoryConversionStore) Create(_ context.Context, conv domain.Conversion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.convs[conv.ID]; exists {
		return fmt.Errorf("conversion %s already exists", conv.ID)
	}
	s.convs[conv.ID] = conv
	return nil
}

func (s *MemoryConversionStore) Get(_ context.Context, id string) (domain.Conversion, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.convs[id]
	return conv, ok, nil
}

func (s *MemoryConversionStore) Update(_ context.Context, conv domain.Conversion) (domain.Conversion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.convs[conv.ID]
	if !ok {
		return domain.Conversion{}, ErrConversionNotFound
	}

	conv.CreatedAt = existing.CreatedAt
	conv.UpdatedAt = time.Now().UTC()
	s.convs[conv.ID] = conv
	return conv, nil
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStorePutGet(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(filepath.Join(dir, "files"))
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	ctx := context.Background()
	payload := []byte("avif-bytes")
	if err := s.Put(ctx, "outputs/abc.avif", payload, "image/avif"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := s.Get(ctx, "outputs/abc.avif")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Get() = %q, want %q", got, payload)
	}

	ok, err := s.Exists(ctx, "outputs/abc.avif")
	if err != nil || !ok {
		t.Fatalf("Exists() = %v, %v, want true, nil", ok, err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "files", "outputs"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, found %d entries", len(entries))
	}
}

func TestLocalStoreMissing(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	_, err = s.Get(context.Background(), "nope.avif")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	ok, err := s.Exists(context.Background(), "nope.avif")
	if err != nil || ok {
		t.Fatalf("Exists() = %v, %v, want false, nil", ok, err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}

	for _, key := range []string{"", "../etc/passwd", "/abs.avif", "a/../../b", `a\b`} {
		if err := s.Put(context.Background(), key, []byte("x"), ""); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

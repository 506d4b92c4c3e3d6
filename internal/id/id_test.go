package id

import (
	"strings"
	"testing"
)

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		v := New()
		if len(v) != 32 {
			t.Fatalf("expected 32 hex chars, got %q", v)
		}
		if _, dup := seen[v]; dup {
			t.Fatalf("duplicate id %q", v)
		}
		seen[v] = struct{}{}
	}
}

func TestContentNameStable(t *testing.T) {
	a := ContentName([]byte("same bytes"), "avif")
	b := ContentName([]byte("same bytes"), "avif")
	c := ContentName([]byte("other bytes"), "avif")

	if a != b {
		t.Fatalf("expected stable name, got %q and %q", a, b)
	}
	if a == c {
		t.Fatalf("expected different names for different content")
	}
	if !strings.HasSuffix(a, ".avif") || len(a) != 16+len(".avif") {
		t.Fatalf("unexpected name shape %q", a)
	}
}

func TestDigestMatchesContentName(t *testing.T) {
	data := []byte("payload")
	if got := ContentName(data, "png"); got != Digest(data)+".png" {
		t.Fatalf("ContentName() = %q, want digest prefix %q", got, Digest(data))
	}
}

package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
)

func TestSendSignsBody(t *testing.T) {
	var (
		gotSig  string
		gotTS   string
		gotEvt  string
		gotBody []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret:  "test-secret",
		Timeout:        2 * time.Second,
		MaxAttempts:    1,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     20 * time.Millisecond,
	})

	event := EventFor(domain.Conversion{ID: "conv-1", Status: domain.StatusSucceeded, OutputFormat: "avif"})
	if err := client.Send(context.Background(), srv.URL, event); err != nil {
		t.Fatalf("send returned error: %v", err)
	}

	if gotEvt != EventCompleted {
		t.Fatalf("expected event header %s, got %q", EventCompleted, gotEvt)
	}
	if err := Verify("test-secret", gotSig, gotTS, gotBody, time.Now(), time.Minute); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if err := Verify("other-secret", gotSig, gotTS, gotBody, time.Now(), time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("Verify() with wrong secret error = %v, want ErrBadSignature", err)
	}
}

func TestSendRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	if err := client.Send(context.Background(), srv.URL, Event{Event: EventFailed}); err != nil {
		t.Fatalf("send returned error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestSendGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{MaxAttempts: 2, InitialBackoff: time.Millisecond})
	if err := client.Send(context.Background(), srv.URL, Event{Event: EventFailed}); err == nil {
		t.Fatal("expected delivery error")
	}
}

func TestSendSkipsEmptyEndpoint(t *testing.T) {
	if err := NewClient(Config{}).Send(context.Background(), "  ", Event{}); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	body := []byte(`{}`)
	old := time.Now().Add(-time.Hour)
	ts := strconv.FormatInt(old.Unix(), 10)
	sig := Sign("s", ts, body)

	if err := Verify("s", sig, ts, body, time.Now(), 5*time.Minute); !errors.Is(err, ErrStale) {
		t.Fatalf("Verify() error = %v, want ErrStale", err)
	}
	if err := Verify("s", sig, ts, body, time.Now(), 0); err != nil {
		t.Fatalf("Verify() without tolerance error = %v", err)
	}
}

func TestEventForFailed(t *testing.T) {
	ev := EventFor(domain.Conversion{ID: "c", Status: domain.StatusFailed, Error: "decoding: boom"})
	if ev.Event != EventFailed || ev.Error != "decoding: boom" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

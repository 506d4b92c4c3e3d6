package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
)

func TestTranscodeTaskRoundTrip(t *testing.T) {
	payload := TranscodePayload{
		ConversionID: "conv-123",
		SourceKey:    "sources/conv-123.png",
		Quality:      62.5,
		OutputFormat: "avif",
		WebhookURL:   "https://example.com/hook",
		RequestedAt:  time.Now().UTC(),
	}

	task, err := NewTranscodeTask(payload)
	if err != nil {
		t.Fatalf("NewTranscodeTask returned error: %v", err)
	}
	if task.Type() != TypeTranscode {
		t.Fatalf("expected task type %q, got %q", TypeTranscode, task.Type())
	}

	parsed, err := ParseTranscodePayload(task)
	if err != nil {
		t.Fatalf("ParseTranscodePayload returned error: %v", err)
	}
	if parsed.ConversionID != payload.ConversionID || parsed.SourceKey != payload.SourceKey {
		t.Fatalf("unexpected payload: %+v", parsed)
	}
	if parsed.Quality != 62.5 {
		t.Fatalf("expected quality 62.5, got %v", parsed.Quality)
	}
}

func TestTranscodeTaskRequiresIDs(t *testing.T) {
	if _, err := NewTranscodeTask(TranscodePayload{SourceKey: "x"}); err == nil {
		t.Fatal("expected error for missing conversion id")
	}

	task := asynq.NewTask(TypeTranscode, []byte(`{"conversion_id":"c1"}`))
	if _, err := ParseTranscodePayload(task); err == nil {
		t.Fatal("expected error for missing source key")
	}

	garbage := asynq.NewTask(TypeTranscode, []byte(`{`))
	if _, err := ParseTranscodePayload(garbage); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

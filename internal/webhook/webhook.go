// Package webhook delivers signed conversion notifications.
//
// Each request carries the event name, a unix timestamp and an HMAC-SHA256
// signature over "<timestamp>.<body>" keyed by the shared signing secret.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/avifconv/internal/domain"
)

const (
	HeaderSignature = "X-Avifconv-Signature"
	HeaderTimestamp = "X-Avifconv-Timestamp"
	HeaderEvent     = "X-Avifconv-Event"

	EventCompleted = "conversion.completed"
	EventFailed    = "conversion.failed"

	signaturePrefix = "sha256="
)

var (
	ErrBadSignature = errors.New("webhook signature mismatch")
	ErrStale        = errors.New("webhook timestamp outside tolerance")
)

// Event is the JSON body sent for a finished conversion.
type Event struct {
	Event        string    `json:"event"`
	ConversionID string    `json:"conversion_id"`
	Status       string    `json:"status"`
	OutputFormat string    `json:"output_format,omitempty"`
	OutputKey    string    `json:"output_key,omitempty"`
	OutputBytes  int       `json:"output_bytes,omitempty"`
	ColorBytes   int       `json:"color_bytes,omitempty"`
	AlphaBytes   int       `json:"alpha_bytes,omitempty"`
	Error        string    `json:"error,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// EventFor builds the notification for a terminal conversion.
func EventFor(conv domain.Conversion) Event {
	name := EventCompleted
	if conv.Status == domain.StatusFailed {
		name = EventFailed
	}
	return Event{
		Event:        name,
		ConversionID: conv.ID,
		Status:       conv.Status,
		OutputFormat: conv.OutputFormat,
		OutputKey:    conv.OutputKey,
		OutputBytes:  conv.OutputBytes,
		ColorBytes:   conv.ColorBytes,
		AlphaBytes:   conv.AlphaBytes,
		Error:        conv.Error,
		OccurredAt:   conv.UpdatedAt,
	}
}

func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a received notification. A zero tolerance skips the
// timestamp check.
func Verify(secret, signature, timestamp string, body []byte, now time.Time, tolerance time.Duration) error {
	if !strings.HasPrefix(signature, signaturePrefix) {
		return ErrBadSignature
	}
	expected := Sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}

	if tolerance > 0 {
		unix, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil {
			return ErrStale
		}
		skew := now.Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return ErrStale
		}
	}
	return nil
}

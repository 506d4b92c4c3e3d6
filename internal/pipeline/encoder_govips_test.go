//go:build govips && cgo

package pipeline

import (
	"image/color"
	"testing"
)

func TestGovipsAVIFEncoder_RoundTrip(t *testing.T) {
	if err := Startup(0); err != nil {
		t.Fatalf("startup: %v", err)
	}

	tests := []struct {
		name        string
		want        color.NRGBA
		premultiply bool
	}{
		{"opaque", color.NRGBA{R: 200, G: 100, B: 50, A: 255}, false},
		{"opaque premultiplied", color.NRGBA{R: 200, G: 100, B: 50, A: 255}, true},
		{"translucent", color.NRGBA{R: 200, G: 100, B: 50, A: 128}, false},
		{"translucent premultiplied", color.NRGBA{R: 200, G: 100, B: 50, A: 128}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertRoundTrip(t, newGovipsAVIFEncoder(), tt.want, tt.premultiply)
		})
	}
}

func TestGovipsAVIFEncoder_TranslucentKeepsAlphaQuality(t *testing.T) {
	capture := &captureEncoder{}
	enc := govipsAVIFEncoder{translucent: capture}

	buf, err := Decode(buildTestPNG(t, 4, 4, solid(color.NRGBA{R: 10, A: 64})))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := enc.Encode(buf, BuildConfig(80)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if capture.cfg.AlphaQuality != 90 {
		t.Fatalf("alpha quality = %v, want 90", capture.cfg.AlphaQuality)
	}
}

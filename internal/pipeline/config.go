package pipeline

import (
	"fmt"
	"strings"
)

const (
	DefaultQuality float32 = 80
	// DefaultSpeed is a fixed effort level, not derived from quality.
	// Lower is slower with smaller output.
	DefaultSpeed = 4
	MaxSpeed     = 10
)

// ColorSpace selects the internal color transform used by the encoder.
type ColorSpace int

const (
	ColorSpaceRGB ColorSpace = iota
	ColorSpaceYCbCr
)

func (c ColorSpace) String() string {
	if c == ColorSpaceYCbCr {
		return "ycbcr"
	}
	return "rgb"
}

func ParseColorSpace(s string) (ColorSpace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rgb":
		return ColorSpaceRGB, nil
	case "ycbcr", "yuv":
		return ColorSpaceYCbCr, nil
	default:
		return ColorSpaceRGB, fmt.Errorf("unknown color space %q", s)
	}
}

// EncodeConfig is the parameter set for a single encode call.
type EncodeConfig struct {
	Quality      float32
	Speed        int
	AlphaQuality float32
	ColorSpace   ColorSpace
	// Threads of 0 lets the encoder choose.
	Threads            int
	PremultipliedAlpha bool
}

// BuildConfig derives the default configuration from a base quality. The
// quality is passed through unvalidated; the encoder rejects out-of-range values.
func BuildConfig(baseQuality float32) EncodeConfig {
	return EncodeConfig{
		Quality:      baseQuality,
		Speed:        DefaultSpeed,
		AlphaQuality: alphaQuality(baseQuality),
		ColorSpace:   ColorSpaceRGB,
		Threads:      0,
	}
}

// alphaQuality lifts alpha quality above color quality at low settings and
// caps the lift at high ones.
func alphaQuality(q float32) float32 {
	return min((q+100)/2, q+q/4+2)
}

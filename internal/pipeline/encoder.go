package pipeline

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/dunamismax/avifconv/internal/container"
)

const (
	// maxDimension is the largest width or height accepted by the pipeline.
	maxDimension = 1 << 16
	// maxPixels caps Width*Height so one decode stays around 256 MiB of RGBA8.
	maxPixels = 1 << 26
)

// OutputFormat is the compressed container an Encoder produces.
type OutputFormat string

const (
	OutputAVIF OutputFormat = "avif"
	OutputWebP OutputFormat = "webp"
)

func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputAVIF:
		return OutputAVIF, nil
	case OutputWebP:
		return OutputWebP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOutputFormat, s)
	}
}

func (f OutputFormat) ContentType() string {
	return "image/" + string(f)
}

func (f OutputFormat) Extension() string {
	return string(f)
}

// EncodedOutput is a compressed image plus the bytes spent on each plane.
// ColorBytes+AlphaBytes never exceeds TotalBytes; the remainder is container overhead.
type EncodedOutput struct {
	Data         []byte
	Format       OutputFormat
	ColorBytes   int
	AlphaBytes   int
	Width        int
	Height       int
	SourceFormat Format
}

func (o EncodedOutput) TotalBytes() int {
	return len(o.Data)
}

func (o EncodedOutput) OverheadBytes() int {
	return len(o.Data) - o.ColorBytes - o.AlphaBytes
}

// Summary renders the size breakdown logged after a successful conversion.
// Kilobytes round up.
func (o EncodedOutput) Summary() string {
	return fmt.Sprintf("%dKB (%dB color, %dB alpha, %dB container)",
		(o.TotalBytes()+999)/1000, o.ColorBytes, o.AlphaBytes, o.OverheadBytes())
}

// Encoder compresses a normalized PixelBuffer. Implementations must not
// retain buf after Encode returns.
type Encoder interface {
	Format() OutputFormat
	Encode(buf *PixelBuffer, cfg EncodeConfig) (EncodedOutput, error)
}

// NewEncoder returns the encoder for format. AVIF is served by libvips when
// built with the govips tag and by the WASM libavif build otherwise.
func NewEncoder(format OutputFormat) (Encoder, error) {
	switch format {
	case OutputAVIF:
		return newAVIFEncoder(), nil
	case OutputWebP:
		return webpEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOutputFormat, format)
	}
}

func validateEncodeInput(buf *PixelBuffer, cfg EncodeConfig) error {
	if buf == nil {
		return encodeFailed("no pixel buffer", ErrInvalidDimensions)
	}
	if buf.Width <= 0 || buf.Height <= 0 || buf.Width > maxDimension || buf.Height > maxDimension {
		return encodeFailed(fmt.Sprintf("dimensions %dx%d", buf.Width, buf.Height), ErrInvalidDimensions)
	}
	if int64(buf.Width)*int64(buf.Height) > maxPixels {
		return encodeFailed(fmt.Sprintf("dimensions %dx%d exceed the %d pixel limit", buf.Width, buf.Height, maxPixels), ErrInvalidDimensions)
	}
	if len(buf.Pix) != 4*buf.Width*buf.Height {
		return encodeFailed(fmt.Sprintf("pixel data has %d bytes for %dx%d", len(buf.Pix), buf.Width, buf.Height), ErrInvalidDimensions)
	}
	if !inQualityRange(cfg.Quality) {
		return encodeFailed(fmt.Sprintf("quality %v", cfg.Quality), ErrInvalidQuality)
	}
	if !inQualityRange(cfg.AlphaQuality) {
		return encodeFailed(fmt.Sprintf("alpha quality %v", cfg.AlphaQuality), ErrInvalidQuality)
	}
	if cfg.Speed < 0 || cfg.Speed > MaxSpeed {
		return encodeFailed(fmt.Sprintf("speed %d", cfg.Speed), ErrInvalidSpeed)
	}
	if cfg.PremultipliedAlpha != buf.Premultiplied() {
		return encodeFailed("premultiplied flag does not match pixel buffer", nil)
	}
	return nil
}

func inQualityRange(q float32) bool {
	return !math.IsNaN(float64(q)) && q >= 0 && q <= 100
}

func qualityInt(q float32) int {
	return int(math.Round(float64(q)))
}

func chromaSubsampling(cs ColorSpace) image.YCbCrSubsampleRatio {
	if cs == ColorSpaceYCbCr {
		return image.YCbCrSubsampleRatio420
	}
	return image.YCbCrSubsampleRatio444
}

func newEncodedOutput(format OutputFormat, buf *PixelBuffer, data []byte) (EncodedOutput, error) {
	if len(data) == 0 {
		return EncodedOutput{}, encodeFailed(string(format)+" encoder produced no data", nil)
	}

	out := EncodedOutput{
		Data:   data,
		Format: format,
		Width:  buf.Width,
		Height: buf.Height,
	}

	var (
		planes container.Planes
		err    error
	)
	switch format {
	case OutputAVIF:
		planes, err = container.AVIFPlanes(data)
	case OutputWebP:
		planes, err = container.WebPPlanes(data)
	}
	// The breakdown is diagnostic only; an unreadable container leaves it at zero.
	if err == nil && planes.Color+planes.Alpha <= len(data) {
		out.ColorBytes = planes.Color
		out.AlphaBytes = planes.Alpha
	}
	return out, nil
}

package pipeline

import (
	"bytes"

	"github.com/gen2brain/avif"
)

// wasmAVIFEncoder runs libavif through gen2brain/avif: a system libavif is
// loaded with purego when present, otherwise the embedded WASM build is used.
type wasmAVIFEncoder struct{}

func (wasmAVIFEncoder) Format() OutputFormat { return OutputAVIF }

func (wasmAVIFEncoder) Encode(buf *PixelBuffer, cfg EncodeConfig) (EncodedOutput, error) {
	if err := validateEncodeInput(buf, cfg); err != nil {
		return EncodedOutput{}, err
	}

	opts := avif.Options{
		Quality:           qualityInt(cfg.Quality),
		QualityAlpha:      qualityInt(cfg.AlphaQuality),
		Speed:             cfg.Speed,
		ChromaSubsampling: chromaSubsampling(cfg.ColorSpace),
	}

	var out bytes.Buffer
	out.Grow(len(buf.Pix) / 8)
	if err := avif.Encode(&out, buf.Image(), opts); err != nil {
		return EncodedOutput{}, encodeFailed("avif encode", err)
	}
	return newEncodedOutput(OutputAVIF, buf, out.Bytes())
}

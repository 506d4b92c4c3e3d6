//go:build govips && cgo

package pipeline

import (
	"bytes"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
)

// govipsAVIFEncoder hands opaque buffers to libvips as a lossless PNG and
// exports AVIF through libheif. Startup must have been called.
//
// libvips reads the staged PNG as straight alpha and encodes alpha at the
// colour quality, so translucent buffers go to libavif, which takes both
// premultiplied pixels and a separate alpha quality.
type govipsAVIFEncoder struct {
	translucent Encoder
}

func newGovipsAVIFEncoder() govipsAVIFEncoder {
	return govipsAVIFEncoder{translucent: wasmAVIFEncoder{}}
}

func (govipsAVIFEncoder) Format() OutputFormat { return OutputAVIF }

func (e govipsAVIFEncoder) Encode(buf *PixelBuffer, cfg EncodeConfig) (EncodedOutput, error) {
	if err := validateEncodeInput(buf, cfg); err != nil {
		return EncodedOutput{}, err
	}
	if !buf.Opaque() {
		return e.translucent.Encode(buf, cfg)
	}

	var staged bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&staged, buf.straight()); err != nil {
		return EncodedOutput{}, encodeFailed("stage pixels for libvips", err)
	}

	img, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return EncodedOutput{}, encodeFailed("load pixels into libvips", err)
	}
	defer img.Close()

	params := vips.NewAvifExportParams()
	params.Quality = qualityInt(cfg.Quality)
	params.Speed = cfg.Speed
	params.StripMetadata = true

	data, _, err := img.ExportAvif(params)
	if err != nil {
		return EncodedOutput{}, encodeFailed("avif export", err)
	}
	return newEncodedOutput(OutputAVIF, buf, data)
}

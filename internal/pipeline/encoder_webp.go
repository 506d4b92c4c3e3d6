package pipeline

import (
	"bytes"

	"github.com/gen2brain/webp"
)

// webpEncoder writes lossy WebP from straight-alpha pixels. Alpha quality and
// speed have no WebP equivalent in this encoder and are ignored.
type webpEncoder struct{}

func (webpEncoder) Format() OutputFormat { return OutputWebP }

func (webpEncoder) Encode(buf *PixelBuffer, cfg EncodeConfig) (EncodedOutput, error) {
	if err := validateEncodeInput(buf, cfg); err != nil {
		return EncodedOutput{}, err
	}
	if buf.Width > 16383 || buf.Height > 16383 {
		return EncodedOutput{}, encodeFailed("webp is limited to 16383x16383", ErrInvalidDimensions)
	}

	var out bytes.Buffer
	opts := webp.Options{
		Lossless: false,
		Quality:  qualityInt(cfg.Quality),
	}
	if err := webp.Encode(&out, buf.straight(), opts); err != nil {
		return EncodedOutput{}, encodeFailed("webp encode", err)
	}
	return newEncodedOutput(OutputWebP, buf, out.Bytes())
}

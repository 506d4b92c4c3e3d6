package pipeline

import "fmt"

// Options fixes the encoder settings a Transcoder applies on top of
// BuildConfig. The zero value is not useful; start from DefaultOptions.
type Options struct {
	Format             OutputFormat
	Speed              int
	ColorSpace         ColorSpace
	Threads            int
	PremultipliedAlpha bool
}

func DefaultOptions() Options {
	return Options{
		Format:     OutputAVIF,
		Speed:      DefaultSpeed,
		ColorSpace: ColorSpaceRGB,
	}
}

// Transcoder runs detect → decode → premultiply → encode. It holds no
// per-call state and is safe for concurrent use.
type Transcoder struct {
	opts    Options
	encoder Encoder
}

func NewTranscoder(opts Options) (*Transcoder, error) {
	if opts.Format == "" {
		opts.Format = OutputAVIF
	}
	encoder, err := NewEncoder(opts.Format)
	if err != nil {
		return nil, fmt.Errorf("build encoder: %w", err)
	}
	return &Transcoder{opts: opts, encoder: encoder}, nil
}

// NewTranscoderWithEncoder is NewTranscoder with a caller-supplied encoder.
func NewTranscoderWithEncoder(opts Options, encoder Encoder) *Transcoder {
	opts.Format = encoder.Format()
	return &Transcoder{opts: opts, encoder: encoder}
}

func (t *Transcoder) Options() Options {
	return t.opts
}

// Transcode converts raw PNG or JPEG bytes. Every failure is a *StageError and
// no partial output is returned.
func (t *Transcoder) Transcode(raw []byte, baseQuality float32) (EncodedOutput, error) {
	format := Detect(raw)

	buf, err := decodeAs(format, raw)
	if err != nil {
		return EncodedOutput{}, &StageError{Stage: StageDecoding, Err: err}
	}

	if t.opts.PremultipliedAlpha {
		if err := buf.Premultiply(); err != nil {
			return EncodedOutput{}, &StageError{Stage: StageTransforming, Err: err}
		}
	}

	out, err := t.encoder.Encode(buf, t.config(baseQuality))
	if err != nil {
		return EncodedOutput{}, &StageError{Stage: StageEncoding, Err: err}
	}
	if out.ColorBytes+out.AlphaBytes > out.TotalBytes() {
		return EncodedOutput{}, &StageError{
			Stage: StageEncoding,
			Err:   encodeFailed(fmt.Sprintf("plane sizes %d+%d exceed output size %d", out.ColorBytes, out.AlphaBytes, out.TotalBytes()), nil),
		}
	}

	out.SourceFormat = format
	return out, nil
}

func (t *Transcoder) config(baseQuality float32) EncodeConfig {
	cfg := BuildConfig(baseQuality)
	cfg.Speed = t.opts.Speed
	cfg.ColorSpace = t.opts.ColorSpace
	cfg.Threads = t.opts.Threads
	cfg.PremultipliedAlpha = t.opts.PremultipliedAlpha
	return cfg
}

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedImage          = errors.New("malformed image")
	ErrUnsupportedPixelModel   = errors.New("unsupported pixel model")
	ErrAlreadyPremultiplied    = errors.New("pixel buffer is already premultiplied")
	ErrEncodingFailed          = errors.New("encoding failed")
	ErrInvalidDimensions       = errors.New("invalid image dimensions")
	ErrInvalidQuality          = errors.New("quality out of range")
	ErrInvalidSpeed            = errors.New("speed out of range")
	ErrUnsupportedOutputFormat = errors.New("unsupported output format")
)

// Stage names the step of a transcode that produced an error.
type Stage string

const (
	StageDetecting    Stage = "detecting"
	StageDecoding     Stage = "decoding"
	StageTransforming Stage = "transforming"
	StageEncoding     Stage = "encoding"
)

// DecodeError reports why a source image could not be turned into a PixelBuffer.
// It matches ErrMalformedImage or ErrUnsupportedPixelModel through errors.Is.
type DecodeError struct {
	Format Format
	// Model is the rejected pixel model name, empty for malformed input.
	Model string
	Err   error
}

func malformed(format Format, err error) *DecodeError {
	return &DecodeError{Format: format, Err: err}
}

func unsupportedModel(format Format, model string) *DecodeError {
	return &DecodeError{Format: format, Model: model}
}

func (e *DecodeError) Error() string {
	if e.Model != "" {
		if e.Model == "CMYK" {
			return "CMYK JPEG is not supported. Please convert to PNG first"
		}
		return fmt.Sprintf("%s pixel model %s is not supported", strings.ToUpper(e.Format.String()), e.Model)
	}
	if e.Err == nil {
		return fmt.Sprintf("decode %s: %v", e.Format, ErrMalformedImage)
	}
	return fmt.Sprintf("decode %s: %v: %v", e.Format, ErrMalformedImage, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	kind := ErrMalformedImage
	if e.Model != "" {
		kind = ErrUnsupportedPixelModel
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// EncodeError reports a failed compression. It always matches ErrEncodingFailed.
type EncodeError struct {
	Reason string
	Err    error
}

func encodeFailed(reason string, err error) *EncodeError {
	return &EncodeError{Reason: reason, Err: err}
}

func (e *EncodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", ErrEncodingFailed, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %v", ErrEncodingFailed, e.Reason, e.Err)
}

func (e *EncodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEncodingFailed}
	}
	return []error{ErrEncodingFailed, e.Err}
}

// StageError wraps a decode, transform or encode failure with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded on err, or "" when err did not come from Transcode.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsClientError reports whether err was caused by the caller's input rather than the service.
func IsClientError(err error) bool {
	for _, target := range []error{
		ErrMalformedImage,
		ErrUnsupportedPixelModel,
		ErrInvalidDimensions,
		ErrInvalidQuality,
		ErrInvalidSpeed,
		ErrUnsupportedOutputFormat,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

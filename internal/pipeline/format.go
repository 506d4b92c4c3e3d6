package pipeline

import "bytes"

// Format is the source encoding classified from magic bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatPNG
	FormatJPEG
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	default:
		return "unknown"
	}
}

// Detect classifies data by its first four bytes. Anything that is not PNG is
// handed to the JPEG decoder, which does its own validation; only inputs too
// short to carry a signature come back as FormatUnknown.
func Detect(data []byte) Format {
	if len(data) < len(pngMagic) {
		return FormatUnknown
	}
	if bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return FormatPNG
	}
	return FormatJPEG
}

// PixelLayout is the channel arrangement a decoder reported for the source.
type PixelLayout int

const (
	LayoutOther PixelLayout = iota
	LayoutGray
	LayoutRGB
	LayoutRGBA
	LayoutCMYK
)

func (l PixelLayout) String() string {
	switch l {
	case LayoutGray:
		return "Gray"
	case LayoutRGB:
		return "RGB"
	case LayoutRGBA:
		return "RGBA"
	case LayoutCMYK:
		return "CMYK"
	default:
		return "Other"
	}
}

package pipeline

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// PixelBuffer is a decoded image normalized to row-major RGBA8.
// len(Pix) is always 4*Width*Height.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []uint8

	premultiplied bool
}

func newPixelBuffer(width, height int) *PixelBuffer {
	return &PixelBuffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 4*width*height),
	}
}

// Len returns the number of pixels.
func (b *PixelBuffer) Len() int {
	return len(b.Pix) / 4
}

func (b *PixelBuffer) Premultiplied() bool {
	return b.premultiplied
}

// At returns the stored channel values of the pixel at (x, y) without any
// alpha conversion.
func (b *PixelBuffer) At(x, y int) color.NRGBA {
	i := 4 * (y*b.Width + x)
	return color.NRGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: b.Pix[i+3]}
}

// Premultiply scales R, G and B by A/255 in place using truncating integer
// math. It is not idempotent, so a second call returns ErrAlreadyPremultiplied
// and leaves the pixels untouched.
func (b *PixelBuffer) Premultiply() error {
	if b.premultiplied {
		return ErrAlreadyPremultiplied
	}
	for i := 0; i+3 < len(b.Pix); i += 4 {
		b.Pix[i], b.Pix[i+1], b.Pix[i+2] = premultiplyPixel(b.Pix[i], b.Pix[i+1], b.Pix[i+2], b.Pix[i+3])
	}
	b.premultiplied = true
	return nil
}

func premultiplyPixel(r, g, bl, a uint8) (uint8, uint8, uint8) {
	a16 := uint16(a)
	return uint8(uint16(r) * a16 / 255),
		uint8(uint16(g) * a16 / 255),
		uint8(uint16(bl) * a16 / 255)
}

// Image shares Pix with an image.Image: *image.RGBA once premultiplied,
// *image.NRGBA before.
func (b *PixelBuffer) Image() image.Image {
	if b.premultiplied {
		return &image.RGBA{Pix: b.Pix, Stride: 4 * b.Width, Rect: image.Rect(0, 0, b.Width, b.Height)}
	}
	return b.raw()
}

// raw views the stored bytes as NRGBA regardless of premultiplication, for
// encoders that take the channel values as given.
func (b *PixelBuffer) raw() *image.NRGBA {
	return &image.NRGBA{Pix: b.Pix, Stride: 4 * b.Width, Rect: image.Rect(0, 0, b.Width, b.Height)}
}

// straight returns the pixels with straight alpha. A premultiplied buffer is
// converted into a new image; colour precision lost to premultiplication is
// not recovered.
func (b *PixelBuffer) straight() *image.NRGBA {
	if !b.premultiplied {
		return b.raw()
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	draw.Draw(dst, dst.Rect, b.Image(), image.Point{}, draw.Src)
	return dst
}

// Opaque reports whether every pixel has A == 255.
func (b *PixelBuffer) Opaque() bool {
	for i := 3; i < len(b.Pix); i += 4 {
		if b.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

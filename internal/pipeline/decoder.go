package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// Decode turns PNG or JPEG bytes into a straight-alpha PixelBuffer.
func Decode(data []byte) (*PixelBuffer, error) {
	return decodeAs(Detect(data), data)
}

func decodeAs(format Format, data []byte) (*PixelBuffer, error) {
	switch format {
	case FormatPNG:
		return decodePNG(data)
	default:
		return decodeJPEG(data)
	}
}

func decodePNG(data []byte) (*PixelBuffer, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(FormatPNG, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, malformed(FormatPNG, errors.New("empty image header"))
	}
	if err := CheckDimensions(image.Pt(cfg.Width, cfg.Height)); err != nil {
		return nil, err
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(FormatPNG, err)
	}

	bounds := img.Bounds()
	switch src := img.(type) {
	case *image.NRGBA:
		if src.Rect.Min == (image.Point{}) && src.Stride == 4*bounds.Dx() {
			return &PixelBuffer{Width: bounds.Dx(), Height: bounds.Dy(), Pix: src.Pix[:4*bounds.Dx()*bounds.Dy()]}, nil
		}
		return copyNRGBA(src), nil
	case *image.NRGBA64:
		return narrowNRGBA64(src), nil
	case *image.Paletted:
		return expandPaletted(src), nil
	default:
		// Remaining PNG types carry no transparency, so compositing is lossless.
		return drawInto(img), nil
	}
}

func decodeJPEG(data []byte) (*PixelBuffer, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(FormatJPEG, err)
	}

	if err := CheckLayout(FormatJPEG, layoutOf(cfg.ColorModel)); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, malformed(FormatJPEG, errors.New("missing image info"))
	}
	if err := CheckDimensions(image.Pt(cfg.Width, cfg.Height)); err != nil {
		return nil, err
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(FormatJPEG, err)
	}
	if img.Bounds().Dx() != cfg.Width || img.Bounds().Dy() != cfg.Height {
		return nil, malformed(FormatJPEG, errors.New("image info does not match decoded size"))
	}

	switch src := img.(type) {
	case *image.Gray:
		return expandGray(src), nil
	case *image.CMYK:
		return nil, unsupportedModel(FormatJPEG, LayoutCMYK.String())
	default:
		return drawInto(src), nil
	}
}

// CheckLayout reports whether Decode accepts a layout returned by Inspect.
func CheckLayout(format Format, layout PixelLayout) error {
	if format == FormatPNG {
		return nil
	}
	switch layout {
	case LayoutGray, LayoutRGB:
		return nil
	default:
		return unsupportedModel(FormatJPEG, layout.String())
	}
}

// CheckDimensions rejects images whose header declares more pixels than the
// pipeline will allocate. Decode applies it before any pixel data is read.
func CheckDimensions(size image.Point) error {
	if size.X > maxDimension || size.Y > maxDimension || int64(size.X)*int64(size.Y) > maxPixels {
		return encodeFailed(fmt.Sprintf("%dx%d exceeds the %d pixel limit", size.X, size.Y, maxPixels), ErrInvalidDimensions)
	}
	return nil
}

func layoutOf(model color.Model) PixelLayout {
	switch model {
	case color.GrayModel:
		return LayoutGray
	case color.YCbCrModel, color.RGBAModel:
		return LayoutRGB
	case color.NRGBAModel:
		return LayoutRGBA
	case color.CMYKModel:
		return LayoutCMYK
	default:
		return LayoutOther
	}
}

func expandGray(src *image.Gray) *PixelBuffer {
	bounds := src.Bounds()
	buf := newPixelBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buf.Height; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		out := buf.Pix[4*y*buf.Width:]
		for x := 0; x < buf.Width; x++ {
			g := row[x]
			o := out[4*x : 4*x+4]
			o[0], o[1], o[2], o[3] = g, g, g, 0xff
		}
	}
	return buf
}

func copyNRGBA(src *image.NRGBA) *PixelBuffer {
	bounds := src.Bounds()
	buf := newPixelBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buf.Height; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		copy(buf.Pix[4*y*buf.Width:4*(y+1)*buf.Width], row[:4*buf.Width])
	}
	return buf
}

// narrowNRGBA64 keeps the high byte of each straight-alpha channel.
func narrowNRGBA64(src *image.NRGBA64) *PixelBuffer {
	bounds := src.Bounds()
	buf := newPixelBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buf.Height; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		out := buf.Pix[4*y*buf.Width:]
		for i := 0; i < 4*buf.Width; i++ {
			out[i] = row[2*i]
		}
	}
	return buf
}

// expandPaletted resolves indices through the palette without touching
// alpha, so transparent entries keep their colour. Indices past the palette
// are opaque black, as image/png fills them.
func expandPaletted(src *image.Paletted) *PixelBuffer {
	var lut [256]color.NRGBA
	for i := range lut {
		lut[i] = color.NRGBA{A: 0xff}
	}
	for i, c := range src.Palette {
		if i >= len(lut) {
			break
		}
		lut[i] = color.NRGBAModel.Convert(c).(color.NRGBA)
	}

	bounds := src.Bounds()
	buf := newPixelBuffer(bounds.Dx(), bounds.Dy())
	for y := 0; y < buf.Height; y++ {
		row := src.Pix[src.PixOffset(bounds.Min.X, bounds.Min.Y+y):]
		out := buf.Pix[4*y*buf.Width:]
		for x := 0; x < buf.Width; x++ {
			c := lut[row[x]]
			o := out[4*x : 4*x+4]
			o[0], o[1], o[2], o[3] = c.R, c.G, c.B, c.A
		}
	}
	return buf
}

// drawInto composites src onto an empty buffer. It is exact only for opaque
// sources: fully transparent pixels lose their colour.
func drawInto(src image.Image) *PixelBuffer {
	bounds := src.Bounds()
	buf := newPixelBuffer(bounds.Dx(), bounds.Dy())
	draw.Draw(buf.raw(), image.Rect(0, 0, buf.Width, buf.Height), src, bounds.Min, draw.Src)
	return buf
}

// Inspect reports the detected format, pixel layout and dimensions without
// decoding pixel data.
func Inspect(data []byte) (Format, PixelLayout, image.Point, error) {
	format := Detect(data)
	var (
		cfg image.Config
		err error
	)
	switch format {
	case FormatPNG:
		cfg, err = png.DecodeConfig(bytes.NewReader(data))
	default:
		cfg, err = jpeg.DecodeConfig(bytes.NewReader(data))
	}
	if err != nil {
		return format, LayoutOther, image.Point{}, malformed(format, err)
	}

	layout := layoutOf(cfg.ColorModel)
	if format == FormatPNG {
		layout = pngLayout(cfg.ColorModel)
	}
	return format, layout, image.Pt(cfg.Width, cfg.Height), nil
}

func pngLayout(model color.Model) PixelLayout {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return LayoutGray
	case color.RGBAModel, color.RGBA64Model:
		return LayoutRGB
	default:
		return LayoutRGBA
	}
}

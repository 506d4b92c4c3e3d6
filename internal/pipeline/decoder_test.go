package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"png signature", []byte{0x89, 'P', 'N', 'G', '\r', '\n'}, FormatPNG},
		{"jpeg soi", []byte{0xff, 0xd8, 0xff, 0xe0}, FormatJPEG},
		{"anything else goes to jpeg", []byte("GIF89a"), FormatJPEG},
		{"short input", []byte{0x89, 'P'}, FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.data); got != tt.want {
				t.Fatalf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodePNG_Dimensions(t *testing.T) {
	for _, dim := range []struct{ w, h int }{{1, 1}, {10, 10}, {37, 5}, {3, 120}} {
		data := buildTestPNG(t, dim.w, dim.h, gradient(dim.w, dim.h))

		buf, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %dx%d: %v", dim.w, dim.h, err)
		}
		if buf.Width != dim.w || buf.Height != dim.h {
			t.Fatalf("expected %dx%d, got %dx%d", dim.w, dim.h, buf.Width, buf.Height)
		}
		if buf.Len() != dim.w*dim.h {
			t.Fatalf("expected %d pixels, got %d", dim.w*dim.h, buf.Len())
		}
	}
}

func TestDecodePNG_KeepsStraightAlpha(t *testing.T) {
	want := color.NRGBA{R: 200, G: 100, B: 50, A: 128}
	buf, err := Decode(buildTestPNG(t, 4, 4, solid(want)))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := buf.At(2, 3); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if buf.Premultiplied() {
		t.Fatal("decoded buffer must not be premultiplied")
	}
}

func TestDecodeJPEG_GrayExpandsToOpaqueRGB(t *testing.T) {
	for _, g := range []uint8{0, 77, 128, 255} {
		data := buildGrayJPEG(t, 16, 8, g)
		ref, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("reference decode gray=%d: %v", g, err)
		}
		gray, ok := ref.(*image.Gray)
		if !ok {
			t.Fatalf("expected *image.Gray reference, got %T", ref)
		}

		buf, err := Decode(data)
		if err != nil {
			t.Fatalf("decode gray=%d: %v", g, err)
		}
		if buf.Width != 16 || buf.Height != 8 {
			t.Fatalf("expected 16x8, got %dx%d", buf.Width, buf.Height)
		}
		for y := 0; y < buf.Height; y++ {
			for x := 0; x < buf.Width; x++ {
				v := gray.GrayAt(x, y).Y
				if px := buf.At(x, y); px != (color.NRGBA{R: v, G: v, B: v, A: 255}) {
					t.Fatalf("gray=%d pixel (%d,%d) = %v, want (%d,%d,%d,255)", g, x, y, px, v, v, v)
				}
			}
		}
	}
}

func TestDecodeJPEG_RGBIsOpaque(t *testing.T) {
	buf, err := Decode(buildRGBJPEG(t, 24, 16))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Width != 24 || buf.Height != 16 {
		t.Fatalf("expected 24x16, got %dx%d", buf.Width, buf.Height)
	}
	if !buf.Opaque() {
		t.Fatal("expected every pixel of an rgb jpeg to be opaque")
	}
}

func TestDecodeJPEG_CMYKIsRejected(t *testing.T) {
	_, err := Decode(buildCMYKJPEG())
	if !errors.Is(err, ErrUnsupportedPixelModel) {
		t.Fatalf("expected ErrUnsupportedPixelModel, got %v", err)
	}
	if errors.Is(err, ErrMalformedImage) {
		t.Fatal("cmyk rejection must not be reported as malformed input")
	}

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if de.Model != "CMYK" {
		t.Fatalf("expected model CMYK, got %q", de.Model)
	}
	if de.Error() != "CMYK JPEG is not supported. Please convert to PNG first" {
		t.Fatalf("unexpected message %q", de.Error())
	}
}

func TestDecode_Malformed(t *testing.T) {
	png := buildTestPNG(t, 8, 8, solid(color.NRGBA{A: 255}))
	jpg := buildRGBJPEG(t, 8, 8)

	tests := []struct {
		name string
		data []byte
	}{
		{"single garbage byte", []byte{0x42}},
		{"empty", nil},
		{"truncated png", png[:len(png)/2]},
		{"png signature only", png[:8]},
		{"truncated jpeg", jpg[:20]},
		{"text", []byte("definitely not an image")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			if !errors.Is(err, ErrMalformedImage) {
				t.Fatalf("expected ErrMalformedImage, got %v", err)
			}
		})
	}
}

func TestInspect(t *testing.T) {
	format, layout, size, err := Inspect(buildGrayJPEG(t, 9, 7, 10))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if format != FormatJPEG || layout != LayoutGray || size.X != 9 || size.Y != 7 {
		t.Fatalf("got format=%v layout=%v size=%v", format, layout, size)
	}

	_, layout, _, err = Inspect(buildCMYKJPEG())
	if err != nil {
		t.Fatalf("inspect cmyk: %v", err)
	}
	if layout != LayoutCMYK {
		t.Fatalf("expected CMYK layout, got %v", layout)
	}
}

func TestCheckLayout(t *testing.T) {
	for _, layout := range []PixelLayout{LayoutGray, LayoutRGB} {
		if err := CheckLayout(FormatJPEG, layout); err != nil {
			t.Fatalf("CheckLayout(jpeg, %v) error = %v", layout, err)
		}
	}
	if err := CheckLayout(FormatPNG, LayoutRGBA); err != nil {
		t.Fatalf("CheckLayout(png, RGBA) error = %v", err)
	}
	for _, layout := range []PixelLayout{LayoutCMYK, LayoutRGBA, LayoutOther} {
		if err := CheckLayout(FormatJPEG, layout); !errors.Is(err, ErrUnsupportedPixelModel) {
			t.Fatalf("CheckLayout(jpeg, %v) error = %v, want ErrUnsupportedPixelModel", layout, err)
		}
	}
}

func TestDecode_OversizedHeaderRejectedBeforeAllocation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"png within dimension cap over pixel budget", buildPNGHeader(10000, 10000)},
		{"png wider than dimension cap", buildPNGHeader(maxDimension+1, 1)},
		{"png 60000 square", buildPNGHeader(60000, 60000)},
		{"jpeg over pixel budget", buildJPEGHeader(65535, 65535)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before, after runtime.MemStats
			runtime.ReadMemStats(&before)
			_, err := Decode(tt.data)
			runtime.ReadMemStats(&after)

			if !errors.Is(err, ErrInvalidDimensions) || !errors.Is(err, ErrEncodingFailed) {
				t.Fatalf("expected ErrInvalidDimensions, got %v", err)
			}
			if errors.Is(err, ErrMalformedImage) {
				t.Fatal("oversized header must not be reported as malformed")
			}
			if !IsClientError(err) {
				t.Fatal("oversized image is a client error")
			}
			if grew := after.TotalAlloc - before.TotalAlloc; grew > 16<<20 {
				t.Fatalf("decode allocated %d bytes before rejecting", grew)
			}
		})
	}
}

func TestCheckDimensions(t *testing.T) {
	if err := CheckDimensions(image.Pt(8192, 8192)); err != nil {
		t.Fatalf("8192x8192 should fit, got %v", err)
	}
	if err := CheckDimensions(image.Pt(maxDimension, 1)); err != nil {
		t.Fatalf("a single row at the dimension cap should fit, got %v", err)
	}
	for _, size := range []image.Point{{8193, 8192}, {maxDimension + 1, 1}, {1, maxDimension + 1}} {
		if err := CheckDimensions(size); !errors.Is(err, ErrInvalidDimensions) {
			t.Fatalf("CheckDimensions(%v) error = %v, want ErrInvalidDimensions", size, err)
		}
	}
}

func TestDecodePNG_PalettedKeepsTransparentColour(t *testing.T) {
	src := image.NewPaletted(image.Rect(0, 0, 2, 1), color.Palette{
		color.NRGBA{R: 255, G: 10, B: 20, A: 0},
		color.NRGBA{R: 30, G: 40, B: 50, A: 128},
	})
	src.SetColorIndex(1, 0, 1)

	var data bytes.Buffer
	if err := png.Encode(&data, src); err != nil {
		t.Fatalf("encode paletted png: %v", err)
	}

	buf, err := Decode(data.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := buf.At(0, 0), (color.NRGBA{R: 255, G: 10, B: 20, A: 0}); got != want {
		t.Fatalf("transparent pixel = %v, want %v", got, want)
	}
	if got, want := buf.At(1, 0), (color.NRGBA{R: 30, G: 40, B: 50, A: 128}); got != want {
		t.Fatalf("translucent pixel = %v, want %v", got, want)
	}
}

func TestDecodePNG_16BitNarrowsStraightAlpha(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 2, 1))
	src.SetNRGBA64(0, 0, color.NRGBA64{R: 0xff00, G: 0x0a00, B: 0x1400, A: 0})
	src.SetNRGBA64(1, 0, color.NRGBA64{R: 0xc8ff, G: 0x6400, B: 0x3280, A: 0x8000})

	var data bytes.Buffer
	if err := png.Encode(&data, src); err != nil {
		t.Fatalf("encode 16-bit png: %v", err)
	}

	buf, err := Decode(data.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got, want := buf.At(0, 0), (color.NRGBA{R: 0xff, G: 0x0a, B: 0x14, A: 0}); got != want {
		t.Fatalf("transparent pixel = %v, want %v", got, want)
	}
	if got, want := buf.At(1, 0), (color.NRGBA{R: 0xc8, G: 0x64, B: 0x32, A: 0x80}); got != want {
		t.Fatalf("translucent pixel = %v, want %v", got, want)
	}
}

package pipeline

import (
	"errors"
	"image"
	"testing"
)

func TestPremultiplyPixel_Exact(t *testing.T) {
	for a := 0; a <= 255; a++ {
		for _, c := range []int{0, 1, 127, 128, 200, 254, 255} {
			r, g, b := premultiplyPixel(uint8(c), uint8(c), uint8(255-c), uint8(a))
			wantC := uint8(c * a / 255)
			wantB := uint8((255 - c) * a / 255)
			if r != wantC || g != wantC || b != wantB {
				t.Fatalf("c=%d a=%d: got (%d,%d,%d), want (%d,%d,%d)", c, a, r, g, b, wantC, wantC, wantB)
			}
		}
	}
}

func TestPremultiply(t *testing.T) {
	buf := newPixelBuffer(3, 1)
	copy(buf.Pix, []uint8{
		200, 100, 50, 255,
		200, 100, 50, 0,
		200, 101, 3, 128,
	})

	if err := buf.Premultiply(); err != nil {
		t.Fatalf("premultiply: %v", err)
	}

	want := []uint8{
		200, 100, 50, 255,
		0, 0, 0, 0,
		100, 50, 1, 128,
	}
	for i := range want {
		if buf.Pix[i] != want[i] {
			t.Fatalf("pix[%d] = %d, want %d (all: %v)", i, buf.Pix[i], want[i], buf.Pix)
		}
	}
	if !buf.Premultiplied() {
		t.Fatal("expected buffer to be marked premultiplied")
	}
}

func TestPremultiply_SecondCallRejected(t *testing.T) {
	buf := newPixelBuffer(1, 1)
	copy(buf.Pix, []uint8{200, 200, 200, 128})

	if err := buf.Premultiply(); err != nil {
		t.Fatalf("first premultiply: %v", err)
	}
	if err := buf.Premultiply(); !errors.Is(err, ErrAlreadyPremultiplied) {
		t.Fatalf("expected ErrAlreadyPremultiplied, got %v", err)
	}
	if buf.Pix[0] != 100 {
		t.Fatalf("second call must leave pixels untouched, got %d", buf.Pix[0])
	}
}

func TestPixelBufferImageView(t *testing.T) {
	buf := newPixelBuffer(2, 2)
	if _, ok := buf.Image().(*image.NRGBA); !ok {
		t.Fatalf("expected *image.NRGBA before premultiply, got %T", buf.Image())
	}
	if err := buf.Premultiply(); err != nil {
		t.Fatalf("premultiply: %v", err)
	}
	rgba, ok := buf.Image().(*image.RGBA)
	if !ok {
		t.Fatalf("expected *image.RGBA after premultiply, got %T", buf.Image())
	}
	rgba.Pix[0] = 9
	if buf.Pix[0] != 9 {
		t.Fatal("image view must share the pixel slice")
	}
}

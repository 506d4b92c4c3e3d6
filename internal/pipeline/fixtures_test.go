package pipeline

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func buildTestPNG(t testing.TB, w, h int, fill func(x, y int) color.NRGBA) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, fill(x, y))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func solid(c color.NRGBA) func(x, y int) color.NRGBA {
	return func(int, int) color.NRGBA { return c }
}

func gradient(w, h int) func(x, y int) color.NRGBA {
	return func(x, y int) color.NRGBA {
		return color.NRGBA{
			R: uint8((x * 255) / w),
			G: uint8((y * 255) / h),
			B: 140,
			A: uint8(255 - (x*128)/w),
		}
	}
}

func buildGrayJPEG(t testing.TB, w, h int, g uint8) []byte {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = g
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}); err != nil {
		t.Fatalf("encode gray jpeg: %v", err)
	}
	return buf.Bytes()
}

func buildRGBJPEG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode rgb jpeg: %v", err)
	}
	return buf.Bytes()
}

// buildCMYKJPEG returns a complete 8x8 baseline JPEG with four components
// whose blocks are all zero. image/jpeg cannot write CMYK, so the stream is
// assembled by hand: one-symbol Huffman tables make every block "00" in bits.
func buildCMYKJPEG() []byte {
	var b bytes.Buffer
	b.Write([]byte{0xff, 0xd8})

	b.Write([]byte{0xff, 0xdb, 0x00, 0x43, 0x00})
	b.Write(bytes.Repeat([]byte{1}, 64))

	b.Write([]byte{0xff, 0xc0, 0x00, 0x14, 8, 0x00, 0x08, 0x00, 0x08, 4})
	for id := byte(1); id <= 4; id++ {
		b.Write([]byte{id, 0x11, 0x00})
	}

	for _, class := range []byte{0x00, 0x10} {
		b.Write([]byte{0xff, 0xc4, 0x00, 0x14, class, 1})
		b.Write(make([]byte, 15))
		b.WriteByte(0x00)
	}

	b.Write([]byte{0xff, 0xda, 0x00, 0x0e, 4})
	for id := byte(1); id <= 4; id++ {
		b.Write([]byte{id, 0x00})
	}
	b.Write([]byte{0, 63, 0})

	b.WriteByte(0x00)
	b.Write([]byte{0xff, 0xd9})
	return b.Bytes()
}

// buildPNGHeader returns a PNG that stops after IHDR. It declares a 1-bit
// greyscale image of any size while staying a few dozen bytes long.
func buildPNGHeader(w, h uint32) []byte {
	var b bytes.Buffer
	b.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 1 // bit depth
	ihdr[9] = 0 // greyscale

	writePNGChunk(&b, "IHDR", ihdr)
	writePNGChunk(&b, "IEND", nil)
	return b.Bytes()
}

func writePNGChunk(b *bytes.Buffer, typ string, data []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(data)))
	b.Write(n[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	b.WriteString(typ)
	b.Write(data)
	binary.BigEndian.PutUint32(n[:], crc.Sum32())
	b.Write(n[:])
}

// buildJPEGHeader returns a baseline three-component JPEG that ends at the
// start of scan, which is as far as a header read goes.
func buildJPEGHeader(w, h uint16) []byte {
	var b bytes.Buffer
	b.Write([]byte{0xff, 0xd8})
	b.Write([]byte{0xff, 0xc0, 0x00, 0x11, 8, byte(h >> 8), byte(h), byte(w >> 8), byte(w), 3})
	for id := byte(1); id <= 3; id++ {
		b.Write([]byte{id, 0x11, 0x00})
	}
	b.Write([]byte{0xff, 0xda, 0x00, 0x0c, 3, 1, 0x00, 2, 0x11, 3, 0x11, 0, 63, 0})
	return b.Bytes()
}

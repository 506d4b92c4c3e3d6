// Package container reads just enough of the AVIF (ISOBMFF) and WebP (RIFF)
// containers to attribute encoded bytes to the color and alpha planes.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrTruncated = errors.New("container: truncated data")

// Planes is the number of payload bytes stored for each plane. Box and chunk
// headers are not counted.
type Planes struct {
	Color int
	Alpha int
}

type box struct {
	typ     string
	payload []byte
}

func readBoxes(data []byte) ([]box, error) {
	var boxes []box
	for len(data) > 0 {
		if len(data) < 8 {
			return nil, ErrTruncated
		}
		size := uint64(binary.BigEndian.Uint32(data))
		typ := string(data[4:8])
		header := uint64(8)
		switch size {
		case 0:
			size = uint64(len(data))
		case 1:
			if len(data) < 16 {
				return nil, ErrTruncated
			}
			size = binary.BigEndian.Uint64(data[8:16])
			header = 16
		}
		if size < header || size > uint64(len(data)) {
			return nil, fmt.Errorf("container: box %q has invalid size %d", typ, size)
		}
		boxes = append(boxes, box{typ: typ, payload: data[header:size]})
		data = data[size:]
	}
	return boxes, nil
}

func findBox(boxes []box, typ string) (box, bool) {
	for _, b := range boxes {
		if b.typ == typ {
			return b, true
		}
	}
	return box{}, false
}

// reader decodes big-endian fields and latches the first short read.
type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.b) {
		r.err = ErrTruncated
		r.b = nil
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

// uintN reads an n-byte unsigned integer; n is 0, 4 or 8 in iloc.
func (r *reader) uintN(n int) uint64 {
	switch n {
	case 0:
		return 0
	case 4:
		return uint64(r.u32())
	case 8:
		b := r.take(8)
		if b == nil {
			return 0
		}
		return binary.BigEndian.Uint64(b)
	default:
		if r.err == nil {
			r.err = fmt.Errorf("container: unsupported field size %d", n)
		}
		return 0
	}
}

func (r *reader) fourcc() string {
	return string(r.take(4))
}

// fullBox consumes the version and flags of an ISOBMFF FullBox.
func (r *reader) fullBox() uint8 {
	version := r.u8()
	r.take(3)
	return version
}

// itemID reads a 16-bit ID for version 0 boxes and a 32-bit one otherwise.
func (r *reader) itemID(wide bool) uint32 {
	if wide {
		return r.u32()
	}
	return uint32(r.u16())
}

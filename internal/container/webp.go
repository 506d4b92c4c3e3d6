package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var ErrNotWebP = errors.New("container: not a WebP file")

// WebPPlanes attributes VP8 and VP8L chunks to color and ALPH chunks to alpha.
// Lossless VP8L keeps alpha inside the color bitstream.
func WebPPlanes(data []byte) (Planes, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WEBP" {
		return Planes{}, ErrNotWebP
	}

	end := 8 + int(binary.LittleEndian.Uint32(data[4:8]))
	if end > len(data) {
		return Planes{}, ErrTruncated
	}

	var planes Planes
	body := data[12:end]
	for len(body) > 0 {
		if len(body) < 8 {
			return Planes{}, ErrTruncated
		}
		fourcc := string(body[0:4])
		size := int(binary.LittleEndian.Uint32(body[4:8]))
		if size > len(body)-8 {
			return Planes{}, fmt.Errorf("container: chunk %q overruns file", fourcc)
		}

		switch fourcc {
		case "VP8 ", "VP8L":
			planes.Color += size
		case "ALPH":
			planes.Alpha += size
		}

		next := 8 + size + size&1
		if next > len(body) {
			next = len(body)
		}
		body = body[next:]
	}
	return planes, nil
}

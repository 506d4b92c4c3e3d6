package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// New returns a random 128-bit hex identifier.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "conv-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b[:])
}

// Digest is a fast non-cryptographic fingerprint of data, used for
// content-addressed keys and ETags.
func Digest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// ContentName derives a stable file name from the bytes, so identical
// uploads share one object.
func ContentName(data []byte, ext string) string {
	return Digest(data) + "." + ext
}

//go:build !govips || !cgo

package pipeline

// Startup prepares process-wide codec state. The pure-Go build has none.
func Startup(concurrency int) error {
	return nil
}

func Shutdown() {}

func newAVIFEncoder() Encoder {
	return wasmAVIFEncoder{}
}

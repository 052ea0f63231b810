package dataset

import (
	"hash"
	"hash/crc32"
	"io"
)

// checksumWriter tees writes through a running CRC32 (IEEE). The builder
// uses it so the file trailer can be emitted without a second pass.
//
// CRC32 detects accidental corruption only; it is not tamper-proof.
type checksumWriter struct {
	w    io.Writer
	hash hash.Hash32
	n    int64
}

func newChecksumWriter(w io.Writer) *checksumWriter {
	return &checksumWriter{w: w, hash: crc32.NewIEEE()}
}

func (cw *checksumWriter) Write(p []byte) (int, error) {
	if _, err := cw.hash.Write(p); err != nil {
		return 0, err
	}
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func (cw *checksumWriter) Sum() uint32 { return cw.hash.Sum32() }

func (cw *checksumWriter) Written() int64 { return cw.n }

// Package dataset implements the default triple dataset engine: an
// immutable, compressed, indexed on-disk format plus the builder that
// produces it and the reader that maps and queries it.
//
// File layout (all integers little-endian):
//
//	header      64 bytes, see Header
//	dictionary  sorted term dictionary in compressed blocks
//	triples     numTriples fixed 12-byte (S,P,O) ID records in SPO order
//	index       roaring position bitmaps per predicate ID and object ID
//	trailer     CRC32 (IEEE) of everything before it
//
// The triples section is deliberately uncompressed so the reader can binary
// search it directly in the memory mapping.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	// Magic identifies tripod dataset files (ASCII "TPD1").
	Magic = 0x54504431
	// Version is the current format version.
	Version = 0x00010000

	headerSize     = 64
	tripleRecSize  = 12
	trailerSize    = 4
	minDatasetSize = headerSize + trailerSize
)

var (
	// ErrInvalidMagic is returned for files that are not tripod datasets.
	ErrInvalidMagic = errors.New("dataset: invalid magic number")
	// ErrInvalidVersion is returned for unsupported format versions.
	ErrInvalidVersion = errors.New("dataset: unsupported format version")
	// ErrChecksum is returned when the file or header checksum does not match.
	ErrChecksum = errors.New("dataset: checksum mismatch")
	// ErrTruncated is returned when a section offset points past the file end.
	ErrTruncated = errors.New("dataset: file is truncated")
	// ErrClosed is returned for operations on a released dataset.
	ErrClosed = errors.New("dataset: dataset is closed")
)

// Header is the fixed-size descriptor at the start of every dataset file.
type Header struct {
	Magic      uint32
	Version    uint32
	Codec      Codec
	BuildID    [16]byte // UUID stamped at build time
	NumTerms   uint32
	NumTriples uint32
	DictOff    uint64
	TriplesOff uint64
	IndexOff   uint64
	// CRC32 of the preceding header bytes closes the struct on disk.
}

func (h *Header) encode() []byte {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.Version)
	buf[8] = byte(h.Codec)
	copy(buf[12:28], h.BuildID[:])
	binary.LittleEndian.PutUint32(buf[28:], h.NumTerms)
	binary.LittleEndian.PutUint32(buf[32:], h.NumTriples)
	binary.LittleEndian.PutUint64(buf[36:], h.DictOff)
	binary.LittleEndian.PutUint64(buf[44:], h.TriplesOff)
	binary.LittleEndian.PutUint64(buf[52:], h.IndexOff)
	binary.LittleEndian.PutUint32(buf[60:], crc32.ChecksumIEEE(buf[:60]))
	return buf
}

func decodeHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < headerSize {
		return h, ErrTruncated
	}
	if got := binary.LittleEndian.Uint32(data[60:]); got != crc32.ChecksumIEEE(data[:60]) {
		return h, fmt.Errorf("%w: header", ErrChecksum)
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:])
	h.Version = binary.LittleEndian.Uint32(data[4:])
	h.Codec = Codec(data[8])
	copy(h.BuildID[:], data[12:28])
	h.NumTerms = binary.LittleEndian.Uint32(data[28:])
	h.NumTriples = binary.LittleEndian.Uint32(data[32:])
	h.DictOff = binary.LittleEndian.Uint64(data[36:])
	h.TriplesOff = binary.LittleEndian.Uint64(data[44:])
	h.IndexOff = binary.LittleEndian.Uint64(data[52:])

	if h.Magic != Magic {
		return h, ErrInvalidMagic
	}
	if h.Version != Version {
		return h, fmt.Errorf("%w: 0x%08x", ErrInvalidVersion, h.Version)
	}
	return h, nil
}

// verifyFile checks the trailing CRC32 over the whole file body.
func verifyFile(data []byte) error {
	if len(data) < minDatasetSize {
		return ErrTruncated
	}
	body := data[:len(data)-trailerSize]
	want := binary.LittleEndian.Uint32(data[len(data)-trailerSize:])
	if crc32.ChecksumIEEE(body) != want {
		return fmt.Errorf("%w: file body", ErrChecksum)
	}
	return nil
}

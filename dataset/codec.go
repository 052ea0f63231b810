package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec selects the block compression used for the term dictionary.
type Codec uint8

const (
	// CodecNone stores dictionary blocks uncompressed.
	CodecNone Codec = 0
	// CodecLZ4 favors decompression speed.
	CodecLZ4 Codec = 1
	// CodecZSTD favors compression ratio; the default.
	CodecZSTD Codec = 2
)

// ParseCodec maps a codec name to its Codec value.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd", "":
		return CodecZSTD, nil
	}
	return 0, fmt.Errorf("dataset: unknown codec %q", name)
}

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZSTD:
		return "zstd"
	}
	return fmt.Sprintf("codec(%d)", uint8(c))
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Block framing: [uncompressedSize uint32][compressedSize uint32][payload].
// compressedSize == 0 marks an uncompressed payload, used when compression
// does not pay for itself.
const blockHeaderSize = 8

func compressBlock(data []byte, codec Codec) ([]byte, error) {
	var compressed []byte

	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		compressed = buf[:n] // n == 0 means incompressible
	case CodecZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	// Store uncompressed when the codec is none or the ratio is poor.
	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[blockHeaderSize:], data)
		return out, nil
	}

	out := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[blockHeaderSize:], compressed)
	return out, nil
}

func decompressBlock(data []byte, codec Codec) ([]byte, error) {
	if len(data) < blockHeaderSize {
		return nil, errors.New("dataset: block too small for header")
	}
	uncompressedSize := binary.LittleEndian.Uint32(data[0:])
	compressedSize := binary.LittleEndian.Uint32(data[4:])

	if compressedSize == 0 {
		if uint64(len(data)) < blockHeaderSize+uint64(uncompressedSize) {
			return nil, ErrTruncated
		}
		return data[blockHeaderSize : blockHeaderSize+uncompressedSize], nil
	}
	if uint64(len(data)) < blockHeaderSize+uint64(compressedSize) {
		return nil, ErrTruncated
	}
	payload := data[blockHeaderSize : blockHeaderSize+compressedSize]

	switch codec {
	case CodecLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, err
		}
		if uint32(n) != uncompressedSize {
			return nil, errors.New("dataset: decompressed size mismatch")
		}
		return out, nil
	case CodecZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, err
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, errors.New("dataset: decompressed size mismatch")
		}
		return out, nil
	}
	return nil, fmt.Errorf("dataset: compressed block with codec %s", codec)
}

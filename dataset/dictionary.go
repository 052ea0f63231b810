package dataset

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// The dictionary stores every distinct term exactly once, sorted, in
// compressed blocks. A term's ID is its rank in the sorted order, so IDs are
// dense and the (S,P,O) ID ordering of the triples section follows the
// lexicographic term order.
//
// Section layout:
//
//	numBlocks uint32
//	per block: firstTermID u32, termCount u32, dataOff u64, dataLen u32,
//	           firstTermLen u32, firstTerm bytes
//	block payloads (codec framing, see codec.go)
//
// Block payload: termCount entries of {len uint32, bytes}.

type dictBlock struct {
	firstID   uint32
	count     uint32
	off       uint64 // relative to dictionary section start
	length    uint32
	firstTerm string
}

type dictionary struct {
	codec  Codec
	data   []byte
	blocks []dictBlock

	mu    sync.Mutex
	cache map[int][]string
}

const (
	defaultDictBlockSize = 64 << 10
	dictCacheBlocks      = 32
)

func parseDictionary(data []byte, codec Codec) (*dictionary, error) {
	if len(data) < 4 {
		return nil, ErrTruncated
	}
	numBlocks := binary.LittleEndian.Uint32(data)
	pos := uint64(4)

	blocks := make([]dictBlock, 0, numBlocks)
	for i := uint32(0); i < numBlocks; i++ {
		if uint64(len(data)) < pos+24 {
			return nil, ErrTruncated
		}
		b := dictBlock{
			firstID: binary.LittleEndian.Uint32(data[pos:]),
			count:   binary.LittleEndian.Uint32(data[pos+4:]),
			off:     binary.LittleEndian.Uint64(data[pos+8:]),
			length:  binary.LittleEndian.Uint32(data[pos+16:]),
		}
		termLen := binary.LittleEndian.Uint32(data[pos+20:])
		pos += 24
		if uint64(len(data)) < pos+uint64(termLen) {
			return nil, ErrTruncated
		}
		b.firstTerm = string(data[pos : pos+uint64(termLen)])
		pos += uint64(termLen)

		if b.off+uint64(b.length) > uint64(len(data)) {
			return nil, ErrTruncated
		}
		blocks = append(blocks, b)
	}

	return &dictionary{
		codec:  codec,
		data:   data,
		blocks: blocks,
		cache:  make(map[int][]string),
	}, nil
}

// lookupID returns the dense ID of term, or false if the term is absent.
func (d *dictionary) lookupID(term string) (uint32, bool) {
	// Last block whose first term is <= term.
	i := sort.Search(len(d.blocks), func(i int) bool {
		return d.blocks[i].firstTerm > term
	}) - 1
	if i < 0 {
		return 0, false
	}
	terms, err := d.blockTerms(i)
	if err != nil {
		return 0, false
	}
	j := sort.SearchStrings(terms, term)
	if j >= len(terms) || terms[j] != term {
		return 0, false
	}
	return d.blocks[i].firstID + uint32(j), true
}

// term returns the term with the given dense ID.
func (d *dictionary) term(id uint32) (string, error) {
	i := sort.Search(len(d.blocks), func(i int) bool {
		return d.blocks[i].firstID > id
	}) - 1
	if i < 0 || id-d.blocks[i].firstID >= d.blocks[i].count {
		return "", fmt.Errorf("dataset: term ID %d out of range", id)
	}
	terms, err := d.blockTerms(i)
	if err != nil {
		return "", err
	}
	return terms[id-d.blocks[i].firstID], nil
}

// blockTerms decompresses block i, consulting a small shared cache. Matches
// have strong block locality (results are ID-sorted), so a handful of
// resident blocks covers most iterations.
func (d *dictionary) blockTerms(i int) ([]string, error) {
	d.mu.Lock()
	if terms, ok := d.cache[i]; ok {
		d.mu.Unlock()
		return terms, nil
	}
	d.mu.Unlock()

	b := d.blocks[i]
	raw, err := decompressBlock(d.data[b.off:b.off+uint64(b.length)], d.codec)
	if err != nil {
		return nil, err
	}

	terms := make([]string, 0, b.count)
	pos := uint64(0)
	for n := uint32(0); n < b.count; n++ {
		if uint64(len(raw)) < pos+4 {
			return nil, ErrTruncated
		}
		l := binary.LittleEndian.Uint32(raw[pos:])
		pos += 4
		if uint64(len(raw)) < pos+uint64(l) {
			return nil, ErrTruncated
		}
		terms = append(terms, string(raw[pos:pos+uint64(l)]))
		pos += uint64(l)
	}

	d.mu.Lock()
	if len(d.cache) >= dictCacheBlocks {
		d.cache = make(map[int][]string)
	}
	d.cache[i] = terms
	d.mu.Unlock()
	return terms, nil
}

// buildDictionary encodes sorted terms into the on-disk dictionary section.
// Blocks are compressed in parallel.
func buildDictionary(ctx context.Context, terms []string, codec Codec, blockSize int) ([]byte, error) {
	if blockSize <= 0 {
		blockSize = defaultDictBlockSize
	}

	// Partition terms into blocks by uncompressed payload size.
	type blockSpec struct {
		firstID uint32
		terms   []string
	}
	var specs []blockSpec
	start, size := 0, 0
	for i, t := range terms {
		size += 4 + len(t)
		if size >= blockSize {
			specs = append(specs, blockSpec{firstID: uint32(start), terms: terms[start : i+1]})
			start, size = i+1, 0
		}
	}
	if start < len(terms) {
		specs = append(specs, blockSpec{firstID: uint32(start), terms: terms[start:]})
	}

	compressed := make([][]byte, len(specs))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			var payload []byte
			for _, t := range spec.terms {
				var l [4]byte
				binary.LittleEndian.PutUint32(l[:], uint32(len(t)))
				payload = append(payload, l[:]...)
				payload = append(payload, t...)
			}
			blk, err := compressBlock(payload, codec)
			if err != nil {
				return err
			}
			compressed[i] = blk
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Index size is needed to lay out payload offsets.
	indexSize := uint64(4)
	for _, spec := range specs {
		indexSize += 24 + uint64(len(spec.terms[0]))
	}

	var out []byte
	var u32 [4]byte
	var u64 [8]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(specs)))
	out = append(out, u32[:]...)

	dataOff := indexSize
	for i, spec := range specs {
		binary.LittleEndian.PutUint32(u32[:], spec.firstID)
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(spec.terms)))
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint64(u64[:], dataOff)
		out = append(out, u64[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(compressed[i])))
		out = append(out, u32[:]...)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(spec.terms[0])))
		out = append(out, u32[:]...)
		out = append(out, spec.terms[0]...)
		dataOff += uint64(len(compressed[i]))
	}
	for _, blk := range compressed {
		out = append(out, blk...)
	}
	return out, nil
}

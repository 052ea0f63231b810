package dataset

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/engine"
)

// Dataset is a mapped, queryable dataset file. It implements engine.Dataset
// and is safe for concurrent Match calls; Close must happen after all
// iterators are done (the bridge guarantees this via handle refcounting).
type Dataset struct {
	header  Header
	data    []byte
	dict    *dictionary
	triples []byte // the fixed-width ID triple section
	predIdx map[uint32]*roaring.Bitmap
	objIdx  map[uint32]*roaring.Bitmap

	closed  atomic.Bool
	cleanup func() error // unmap / close blob / remove staged file
}

// newDataset parses an already-mapped file image. cleanup runs on Close.
func newDataset(data []byte, verify bool, cleanup func() error) (*Dataset, error) {
	if verify {
		if err := verifyFile(data); err != nil {
			return nil, err
		}
	} else if len(data) < minDatasetSize {
		return nil, ErrTruncated
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	end := uint64(len(data) - trailerSize)
	if hdr.DictOff > hdr.TriplesOff || hdr.TriplesOff > hdr.IndexOff || hdr.IndexOff > end {
		return nil, ErrTruncated
	}
	if hdr.TriplesOff+uint64(hdr.NumTriples)*tripleRecSize != hdr.IndexOff {
		return nil, ErrTruncated
	}

	dict, err := parseDictionary(data[hdr.DictOff:hdr.TriplesOff], hdr.Codec)
	if err != nil {
		return nil, err
	}

	predIdx, objIdx, err := parseIndex(data[hdr.IndexOff:end])
	if err != nil {
		return nil, err
	}

	return &Dataset{
		header:  hdr,
		data:    data,
		dict:    dict,
		triples: data[hdr.TriplesOff:hdr.IndexOff],
		predIdx: predIdx,
		objIdx:  objIdx,
		cleanup: cleanup,
	}, nil
}

// parseIndex reads the predicate and object position bitmaps. The roaring
// views are created over the mapped bytes without copying.
func parseIndex(data []byte) (pred, obj map[uint32]*roaring.Bitmap, err error) {
	pos := uint64(0)
	readSide := func() (map[uint32]*roaring.Bitmap, error) {
		if uint64(len(data)) < pos+4 {
			return nil, ErrTruncated
		}
		count := binary.LittleEndian.Uint32(data[pos:])
		pos += 4

		m := make(map[uint32]*roaring.Bitmap, count)
		for i := uint32(0); i < count; i++ {
			if uint64(len(data)) < pos+8 {
				return nil, ErrTruncated
			}
			termID := binary.LittleEndian.Uint32(data[pos:])
			byteLen := binary.LittleEndian.Uint32(data[pos+4:])
			pos += 8
			if uint64(len(data)) < pos+uint64(byteLen) {
				return nil, ErrTruncated
			}
			rb := roaring.New()
			if _, err := rb.FromBuffer(data[pos : pos+uint64(byteLen)]); err != nil {
				return nil, fmt.Errorf("dataset: parsing position bitmap: %w", err)
			}
			m[termID] = rb
			pos += uint64(byteLen)
		}
		return m, nil
	}

	if pred, err = readSide(); err != nil {
		return nil, nil, err
	}
	if obj, err = readSide(); err != nil {
		return nil, nil, err
	}
	return pred, obj, nil
}

// NumTriples implements engine.Dataset.
func (d *Dataset) NumTriples() int { return int(d.header.NumTriples) }

// NumTerms returns the number of distinct terms in the dictionary.
func (d *Dataset) NumTerms() int { return int(d.header.NumTerms) }

// BuildID returns the UUID stamped when the file was built.
func (d *Dataset) BuildID() string { return uuid.UUID(d.header.BuildID).String() }

// Codec returns the dictionary compression codec.
func (d *Dataset) Codec() Codec { return d.header.Codec }

// Close releases the mapping. It must be called exactly once.
func (d *Dataset) Close() error {
	if d.closed.Swap(true) {
		return ErrClosed
	}
	if d.cleanup != nil {
		return d.cleanup()
	}
	return nil
}

// row returns the ID triple at position i.
func (d *Dataset) row(i int) (s, p, o uint32) {
	rec := d.triples[i*tripleRecSize:]
	return binary.LittleEndian.Uint32(rec),
		binary.LittleEndian.Uint32(rec[4:]),
		binary.LittleEndian.Uint32(rec[8:])
}

// Match implements engine.Dataset. Results are yielded in triple-position
// order, which is (S,P,O) ID order, making repeated identical calls
// order-stable.
func (d *Dataset) Match(subject, predicate, object string) (engine.Iterator, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	// Resolve bound components. A bound term missing from the dictionary
	// cannot match anything.
	var sid, pid, oid uint32
	var sBound, pBound, oBound bool
	resolve := func(term string, id *uint32, bound *bool) bool {
		if term == core.Wildcard {
			return true
		}
		*bound = true
		var ok bool
		*id, ok = d.dict.lookupID(term)
		return ok
	}
	if !resolve(subject, &sid, &sBound) ||
		!resolve(predicate, &pid, &pBound) ||
		!resolve(object, &oid, &oBound) {
		return &rangeIterator{d: d}, nil // empty
	}

	// Bound subject: binary search the SPO-sorted triple section.
	if sBound {
		lo, hi := d.subjectRange(sid)
		if pBound {
			lo, hi = d.predicateRange(lo, hi, pid)
		}
		return &rangeIterator{
			d: d, pos: lo, end: hi,
			oFilter: oBound, oid: oid,
		}, nil
	}

	// Unbound subject with bound predicate/object: intersect position
	// bitmaps from the index section. A term that exists only in other
	// positions has no bitmap and matches nothing.
	if pBound || oBound {
		var pbm, obm *roaring.Bitmap
		if pBound {
			if pbm = d.predIdx[pid]; pbm == nil {
				return &rangeIterator{d: d}, nil // empty
			}
		}
		if oBound {
			if obm = d.objIdx[oid]; obm == nil {
				return &rangeIterator{d: d}, nil // empty
			}
		}
		positions := pbm
		switch {
		case pbm != nil && obm != nil:
			positions = roaring.And(pbm, obm)
		case obm != nil:
			positions = obm
		}
		return &bitmapIterator{d: d, it: positions.Iterator()}, nil
	}

	// Full scan.
	return &rangeIterator{d: d, pos: 0, end: int(d.header.NumTriples)}, nil
}

// subjectRange returns the half-open row range whose subject ID equals sid.
func (d *Dataset) subjectRange(sid uint32) (lo, hi int) {
	n := int(d.header.NumTriples)
	lo = sort.Search(n, func(i int) bool {
		s, _, _ := d.row(i)
		return s >= sid
	})
	hi = sort.Search(n, func(i int) bool {
		s, _, _ := d.row(i)
		return s > sid
	})
	return lo, hi
}

// predicateRange narrows a subject range to rows whose predicate equals pid.
func (d *Dataset) predicateRange(lo, hi int, pid uint32) (int, int) {
	nlo := lo + sort.Search(hi-lo, func(i int) bool {
		_, p, _ := d.row(lo + i)
		return p >= pid
	})
	nhi := lo + sort.Search(hi-lo, func(i int) bool {
		_, p, _ := d.row(lo + i)
		return p > pid
	})
	return nlo, nhi
}

// materialize converts a row into a string triple.
func (d *Dataset) materialize(i int) (core.Triple, error) {
	s, p, o := d.row(i)
	st, err := d.dict.term(s)
	if err != nil {
		return core.Triple{}, err
	}
	pt, err := d.dict.term(p)
	if err != nil {
		return core.Triple{}, err
	}
	ot, err := d.dict.term(o)
	if err != nil {
		return core.Triple{}, err
	}
	return core.Triple{Subject: st, Predicate: pt, Object: ot}, nil
}

// rangeIterator walks a contiguous row range, optionally filtering on a
// bound object ID.
type rangeIterator struct {
	d        *Dataset
	pos, end int
	oFilter  bool
	oid      uint32
	cur      core.Triple
	err      error
}

func (it *rangeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.pos < it.end {
		i := it.pos
		it.pos++
		if it.oFilter {
			if _, _, o := it.d.row(i); o != it.oid {
				continue
			}
		}
		t, err := it.d.materialize(i)
		if err != nil {
			it.err = err
			return false
		}
		it.cur = t
		return true
	}
	return false
}

func (it *rangeIterator) Triple() core.Triple { return it.cur }
func (it *rangeIterator) Err() error          { return it.err }
func (it *rangeIterator) Close() error        { return nil }

// bitmapIterator walks the positions of a roaring bitmap in ascending order.
type bitmapIterator struct {
	d   *Dataset
	it  roaring.IntPeekable
	cur core.Triple
	err error
}

func (it *bitmapIterator) Next() bool {
	if it.err != nil || !it.it.HasNext() {
		return false
	}
	t, err := it.d.materialize(int(it.it.Next()))
	if err != nil {
		it.err = err
		return false
	}
	it.cur = t
	return true
}

func (it *bitmapIterator) Triple() core.Triple { return it.cur }
func (it *bitmapIterator) Err() error          { return it.err }
func (it *bitmapIterator) Close() error        { return nil }

var _ engine.Dataset = (*Dataset)(nil)
var _ io.Closer = (*Dataset)(nil)

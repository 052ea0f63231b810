package dataset

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/resource"
)

// TripleSource is a forward-only triple sequence consumed by Build.
// ntriples.Reader satisfies it directly.
type TripleSource interface {
	Next() bool
	Triple() core.Triple
	Err() error
}

// SliceSource adapts an in-memory triple slice to a TripleSource.
type SliceSource struct {
	triples []core.Triple
	pos     int
}

// NewSliceSource creates a source over triples.
func NewSliceSource(triples []core.Triple) *SliceSource {
	return &SliceSource{triples: triples}
}

// Next advances the source.
func (s *SliceSource) Next() bool {
	if s.pos >= len(s.triples) {
		return false
	}
	s.pos++
	return true
}

// Triple returns the current triple.
func (s *SliceSource) Triple() core.Triple { return s.triples[s.pos-1] }

// Err always returns nil.
func (s *SliceSource) Err() error { return nil }

// BuildOptions configures Build.
type BuildOptions struct {
	// Codec compresses dictionary blocks. Defaults to CodecZSTD.
	Codec Codec

	// DictBlockSize is the uncompressed dictionary block size in bytes.
	DictBlockSize int

	// IOLimitBytesPerSec throttles output writes. 0 means unlimited.
	// Ignored when Jobs is set; the controller's IO limit applies instead.
	IOLimitBytesPerSec int64

	// Jobs treats this build as background work under a shared controller:
	// Build holds one job slot for its whole duration, so concurrent builds
	// sharing the controller are bounded by its MaxBackgroundJobs, and all
	// output writes go through the controller's IO limiter. Nil means
	// unconstrained.
	Jobs *resource.Controller
}

// BuildInfo describes a completed build.
type BuildInfo struct {
	BuildID    string
	NumTerms   int
	NumTriples int
	Bytes      int64
}

// Build encodes all triples from src into the dataset format on w.
// The whole dataset is staged in memory: terms must be deduplicated and
// sorted before any section can be written, which bounds buildable dataset
// size by available memory, not by the format.
func Build(ctx context.Context, w io.Writer, src TripleSource, optFns ...func(o *BuildOptions)) (*BuildInfo, error) {
	opts := BuildOptions{Codec: CodecZSTD}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Jobs != nil {
		if err := opts.Jobs.AcquireJob(ctx); err != nil {
			return nil, err
		}
		defer opts.Jobs.ReleaseJob()
	}

	// Drain the source, interning terms.
	termIDs := make(map[string]uint32)
	var terms []string
	intern := func(t string) uint32 {
		if id, ok := termIDs[t]; ok {
			return id
		}
		id := uint32(len(terms))
		termIDs[t] = id
		terms = append(terms, t)
		return id
	}

	type idTriple struct{ s, p, o uint32 }
	var rows []idTriple
	for src.Next() {
		t := src.Triple()
		rows = append(rows, idTriple{intern(t.Subject), intern(t.Predicate), intern(t.Object)})
	}
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("dataset: reading source: %w", err)
	}

	// Re-rank terms by sorted order so IDs follow lexicographic order.
	sorted := append([]string(nil), terms...)
	sort.Strings(sorted)
	rank := make(map[string]uint32, len(sorted))
	for i, t := range sorted {
		rank[t] = uint32(i)
	}
	remap := make([]uint32, len(terms))
	for old, t := range terms {
		remap[old] = rank[t]
	}
	for i := range rows {
		rows[i] = idTriple{remap[rows[i].s], remap[rows[i].p], remap[rows[i].o]}
	}

	// SPO order, duplicates removed.
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.s != b.s {
			return a.s < b.s
		}
		if a.p != b.p {
			return a.p < b.p
		}
		return a.o < b.o
	})
	dedup := rows[:0]
	for i, r := range rows {
		if i == 0 || r != rows[i-1] {
			dedup = append(dedup, r)
		}
	}
	rows = dedup

	dictSection, err := buildDictionary(ctx, sorted, opts.Codec, opts.DictBlockSize)
	if err != nil {
		return nil, err
	}

	triplesSection := make([]byte, len(rows)*tripleRecSize)
	predBitmaps := make(map[uint32]*roaring.Bitmap)
	objBitmaps := make(map[uint32]*roaring.Bitmap)
	for i, r := range rows {
		rec := triplesSection[i*tripleRecSize:]
		binary.LittleEndian.PutUint32(rec, r.s)
		binary.LittleEndian.PutUint32(rec[4:], r.p)
		binary.LittleEndian.PutUint32(rec[8:], r.o)

		pb := predBitmaps[r.p]
		if pb == nil {
			pb = roaring.New()
			predBitmaps[r.p] = pb
		}
		pb.Add(uint32(i))

		ob := objBitmaps[r.o]
		if ob == nil {
			ob = roaring.New()
			objBitmaps[r.o] = ob
		}
		ob.Add(uint32(i))
	}

	indexSection, err := encodeIndex(predBitmaps, objBitmaps)
	if err != nil {
		return nil, err
	}

	hdr := Header{
		Magic:      Magic,
		Version:    Version,
		Codec:      opts.Codec,
		BuildID:    [16]byte(uuid.New()),
		NumTerms:   uint32(len(sorted)),
		NumTriples: uint32(len(rows)),
		DictOff:    headerSize,
		TriplesOff: headerSize + uint64(len(dictSection)),
		IndexOff:   headerSize + uint64(len(dictSection)+len(triplesSection)),
	}

	out := w
	switch {
	case opts.Jobs != nil:
		out = opts.Jobs.LimitedWriter(ctx, w)
	case opts.IOLimitBytesPerSec > 0:
		rc := resource.NewController(resource.Config{IOLimitBytesPerSec: opts.IOLimitBytesPerSec})
		out = rc.LimitedWriter(ctx, w)
	}
	cw := newChecksumWriter(out)
	for _, section := range [][]byte{hdr.encode(), dictSection, triplesSection, indexSection} {
		if _, err := cw.Write(section); err != nil {
			return nil, err
		}
	}
	// The trailer carries the checksum, so it goes to the throttled writer
	// directly rather than through cw.
	var trailer [trailerSize]byte
	binary.LittleEndian.PutUint32(trailer[:], cw.Sum())
	if _, err := out.Write(trailer[:]); err != nil {
		return nil, err
	}

	return &BuildInfo{
		BuildID:    uuid.UUID(hdr.BuildID).String(),
		NumTerms:   len(sorted),
		NumTriples: len(rows),
		Bytes:      cw.Written() + trailerSize,
	}, nil
}

// BuildFile builds a dataset at path. The write is atomic (temp file +
// rename) and the target is guarded by a lock file so concurrent builds of
// the same dataset cannot interleave.
func BuildFile(ctx context.Context, path string, src TripleSource, optFns ...func(o *BuildOptions)) (*BuildInfo, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("dataset: locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("dataset: %s is being built by another process", path)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
	}()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tpd-build-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	bw := bufio.NewWriter(tmp)
	info, err := Build(ctx, bw, src, optFns...)
	if err != nil {
		tmp.Close()
		return nil, err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, err
	}
	return info, nil
}

// encodeIndex serializes the predicate and object bitmap sides, termID
// ascending within each side.
func encodeIndex(pred, obj map[uint32]*roaring.Bitmap) ([]byte, error) {
	var out []byte
	var u32 [4]byte

	encodeSide := func(m map[uint32]*roaring.Bitmap) error {
		ids := make([]uint32, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		binary.LittleEndian.PutUint32(u32[:], uint32(len(ids)))
		out = append(out, u32[:]...)
		for _, id := range ids {
			rb := m[id]
			rb.RunOptimize()
			data, err := rb.ToBytes()
			if err != nil {
				return err
			}
			binary.LittleEndian.PutUint32(u32[:], id)
			out = append(out, u32[:]...)
			binary.LittleEndian.PutUint32(u32[:], uint32(len(data)))
			out = append(out, u32[:]...)
			out = append(out, data...)
		}
		return nil
	}

	if err := encodeSide(pred); err != nil {
		return nil, err
	}
	if err := encodeSide(obj); err != nil {
		return nil, err
	}
	return out, nil
}

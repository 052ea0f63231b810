package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/engine"
)

var fixtureTriples = []core.Triple{
	{Subject: "http://ex.org/a", Predicate: "http://ex.org/p", Object: "http://ex.org/b"},
	{Subject: "http://ex.org/a", Predicate: "http://ex.org/p", Object: "http://ex.org/c"},
	{Subject: "http://ex.org/x", Predicate: "http://ex.org/q", Object: "http://ex.org/y"},
	{Subject: "http://ex.org/x", Predicate: "http://ex.org/p", Object: `"a literal"@en`},
	{Subject: "_:b0", Predicate: "http://ex.org/q", Object: "http://ex.org/b"},
}

func buildFixture(t *testing.T, triples []core.Triple, optFns ...func(o *BuildOptions)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.tpd")
	info, err := BuildFile(context.Background(), path, NewSliceSource(triples), optFns...)
	require.NoError(t, err)
	require.Equal(t, len(triples), info.NumTriples)
	return path
}

func openFixture(t *testing.T, path string) *Dataset {
	t.Helper()
	ds, err := New().Map(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ds.Close() })
	return ds.(*Dataset)
}

func drain(t *testing.T, it engine.Iterator) []core.Triple {
	t.Helper()
	defer it.Close()
	var out []core.Triple
	for it.Next() {
		out = append(out, it.Triple())
	}
	require.NoError(t, it.Err())
	return out
}

func spoSorted(triples []core.Triple) []core.Triple {
	out := append([]core.Triple(nil), triples...)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		if a.Predicate != b.Predicate {
			return a.Predicate < b.Predicate
		}
		return a.Object < b.Object
	})
	return out
}

func TestBuildAndFullScan(t *testing.T) {
	ds := openFixture(t, buildFixture(t, fixtureTriples))

	assert.Equal(t, len(fixtureTriples), ds.NumTriples())
	assert.NotEmpty(t, ds.BuildID())

	it, err := ds.Match("", "", "")
	require.NoError(t, err)
	got := drain(t, it)
	assert.Equal(t, spoSorted(fixtureTriples), got)

	// Order-stable across repeated identical calls.
	it2, err := ds.Match("", "", "")
	require.NoError(t, err)
	assert.Equal(t, got, drain(t, it2))
}

func TestMatchPlans(t *testing.T) {
	ds := openFixture(t, buildFixture(t, fixtureTriples))

	tests := []struct {
		name    string
		s, p, o string
	}{
		{"bound subject", "http://ex.org/a", "", ""},
		{"subject+predicate", "http://ex.org/a", "http://ex.org/p", ""},
		{"fully bound", "http://ex.org/a", "http://ex.org/p", "http://ex.org/c"},
		{"subject+object", "http://ex.org/x", "", "http://ex.org/y"},
		{"bound predicate", "", "http://ex.org/p", ""},
		{"bound object", "", "", "http://ex.org/b"},
		{"predicate+object", "", "http://ex.org/q", "http://ex.org/y"},
		{"literal object", "", "", `"a literal"@en`},
		{"blank node subject", "_:b0", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			it, err := ds.Match(tc.s, tc.p, tc.o)
			require.NoError(t, err)
			got := drain(t, it)

			pattern := core.Pattern{Subject: tc.s, Predicate: tc.p, Object: tc.o}
			var want []core.Triple
			for _, tr := range spoSorted(fixtureTriples) {
				if pattern.Matches(tr) {
					want = append(want, tr)
				}
			}
			assert.Equal(t, want, got)
			for _, tr := range got {
				assert.True(t, pattern.Matches(tr))
			}
		})
	}
}

func TestMatchUnknownTerm(t *testing.T) {
	ds := openFixture(t, buildFixture(t, fixtureTriples))

	for _, pattern := range [][3]string{
		{"http://ex.org/zzz", "", ""},
		{"", "http://ex.org/zzz", ""},
		{"", "", "http://ex.org/zzz"},
		// Exists as subject but never as predicate.
		{"", "http://ex.org/a", ""},
	} {
		it, err := ds.Match(pattern[0], pattern[1], pattern[2])
		require.NoError(t, err)
		assert.Empty(t, drain(t, it))
	}
}

func TestBuildDeduplicates(t *testing.T) {
	dup := append(append([]core.Triple(nil), fixtureTriples...), fixtureTriples...)
	ds := openFixture(t, buildFixture(t, dup))
	assert.Equal(t, len(fixtureTriples), ds.NumTriples())
}

func TestCodecs(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZSTD} {
		t.Run(codec.String(), func(t *testing.T) {
			ds := openFixture(t, buildFixture(t, fixtureTriples, func(o *BuildOptions) {
				o.Codec = codec
			}))
			assert.Equal(t, codec, ds.Codec())

			it, err := ds.Match("", "", "")
			require.NoError(t, err)
			assert.Len(t, drain(t, it), len(fixtureTriples))
		})
	}
}

func TestSmallDictBlocks(t *testing.T) {
	// Force many dictionary blocks so block binary search is exercised.
	ds := openFixture(t, buildFixture(t, fixtureTriples, func(o *BuildOptions) {
		o.DictBlockSize = 16
	}))
	it, err := ds.Match("http://ex.org/a", "http://ex.org/p", "")
	require.NoError(t, err)
	assert.Len(t, drain(t, it), 2)
}

func TestMapMissingFile(t *testing.T) {
	_, err := New().Map(filepath.Join(t.TempDir(), "absent.tpd"))
	require.Error(t, err)
}

func TestMapRejectsCorruptFile(t *testing.T) {
	path := buildFixture(t, fixtureTriples)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// Flip a byte in the body; the trailer CRC must catch it.
	data[headerSize+3] ^= 0xff
	corrupt := filepath.Join(t.TempDir(), "corrupt.tpd")
	require.NoError(t, os.WriteFile(corrupt, data, 0o644))

	_, err = New().Map(corrupt)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestMapRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foreign.tpd")
	junk := bytes.Repeat([]byte("not a dataset "), 16)
	require.NoError(t, os.WriteFile(path, junk, 0o644))

	_, err := New(func(o *EngineOptions) { o.VerifyChecksum = false }).Map(path)
	require.Error(t, err)
}

func TestDatasetCloseOnce(t *testing.T) {
	ds, err := New().Map(buildFixture(t, fixtureTriples))
	require.NoError(t, err)

	require.NoError(t, ds.Close())
	assert.ErrorIs(t, ds.Close(), ErrClosed)

	_, err = ds.Match("", "", "")
	assert.ErrorIs(t, err, ErrClosed)
}

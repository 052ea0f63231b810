package dataset

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestDict(t *testing.T, terms []string, codec Codec, blockSize int) *dictionary {
	t.Helper()
	section, err := buildDictionary(context.Background(), terms, codec, blockSize)
	require.NoError(t, err)
	d, err := parseDictionary(section, codec)
	require.NoError(t, err)
	return d
}

func TestDictionary_RoundTrip(t *testing.T) {
	terms := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		terms = append(terms, fmt.Sprintf("http://example.org/resource/%04d", i))
	}
	sort.Strings(terms)

	for _, blockSize := range []int{0, 64, 1 << 20} {
		t.Run(fmt.Sprintf("blockSize=%d", blockSize), func(t *testing.T) {
			d := buildTestDict(t, terms, CodecZSTD, blockSize)

			for want, term := range terms {
				id, ok := d.lookupID(term)
				require.True(t, ok, "term %q not found", term)
				assert.Equal(t, uint32(want), id)

				got, err := d.term(id)
				require.NoError(t, err)
				assert.Equal(t, term, got)
			}
		})
	}
}

func TestDictionary_MissingTerm(t *testing.T) {
	d := buildTestDict(t, []string{"b", "d", "f"}, CodecNone, 0)

	for _, term := range []string{"a", "c", "e", "g"} {
		_, ok := d.lookupID(term)
		assert.False(t, ok, "term %q should be absent", term)
	}
}

func TestDictionary_IDOutOfRange(t *testing.T) {
	d := buildTestDict(t, []string{"only"}, CodecNone, 0)
	_, err := d.term(1)
	assert.Error(t, err)
}

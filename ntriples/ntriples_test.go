package ntriples

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triplekit/tripod/core"
)

func readAll(t *testing.T, input string) []core.Triple {
	t.Helper()
	r := NewReader(strings.NewReader(input))
	var out []core.Triple
	for r.Next() {
		out = append(out, r.Triple())
	}
	require.NoError(t, r.Err())
	return out
}

func TestReader_Basic(t *testing.T) {
	input := `
# a comment
<http://ex.org/a> <http://ex.org/p> <http://ex.org/b> .
<http://ex.org/a> <http://ex.org/p> "hello" .

_:b0 <http://ex.org/q> "bonjour"@fr .
<http://ex.org/x> <http://ex.org/n> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .
`
	triples := readAll(t, input)
	require.Len(t, triples, 4)

	assert.Equal(t, core.Triple{
		Subject:   "http://ex.org/a",
		Predicate: "http://ex.org/p",
		Object:    "http://ex.org/b",
	}, triples[0])
	assert.Equal(t, `"hello"`, triples[1].Object)
	assert.Equal(t, "_:b0", triples[2].Subject)
	assert.Equal(t, `"bonjour"@fr`, triples[2].Object)
	assert.Equal(t, `"42"^^<http://www.w3.org/2001/XMLSchema#integer>`, triples[3].Object)
}

func TestReader_EscapedQuoteInLiteral(t *testing.T) {
	triples := readAll(t, `<http://ex.org/a> <http://ex.org/p> "say \"hi\"" .`+"\n")
	require.Len(t, triples, 1)
	assert.Equal(t, `"say \"hi\""`, triples[0].Object)
}

func TestReader_Malformed(t *testing.T) {
	cases := map[string]string{
		"missing dot":          `<http://a> <http://p> <http://o>`,
		"unterminated iri":     `<http://a <http://p> <http://o> .`,
		"unterminated literal": `<http://a> <http://p> "oops .`,
		"too few terms":        `<http://a> <http://p> .`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			r := NewReader(strings.NewReader(input + "\n"))
			for r.Next() {
			}
			var pe *ParseError
			require.Error(t, r.Err())
			assert.ErrorAs(t, r.Err(), &pe)
		})
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	in := []core.Triple{
		{Subject: "http://ex.org/a", Predicate: "http://ex.org/p", Object: "http://ex.org/b"},
		{Subject: "_:b1", Predicate: "http://ex.org/p", Object: `"lit"@en`},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, tr := range in {
		require.NoError(t, w.Write(tr))
	}
	require.NoError(t, w.Flush())

	out := readAll(t, buf.String())
	assert.Equal(t, in, out)
}

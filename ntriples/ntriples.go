// Package ntriples reads and writes the line-based N-Triples format used to
// populate dataset files.
//
// Terms map to the engine's plain-string model: IRIs are stored without
// their angle brackets, blank nodes keep their "_:" prefix, and literals are
// kept verbatim in their N-Triples spelling (surrounding quotes, escape
// sequences, language tag or datatype suffix included). Keeping literals
// verbatim makes reads and writes exact inverses and makes pattern matching
// a byte comparison.
package ntriples

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/triplekit/tripod/core"
)

// ParseError reports a malformed statement with its line number.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ntriples: line %d: %s", e.Line, e.Msg)
}

// Reader decodes N-Triples statements from an io.Reader. Blank lines and
// comment lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	cur     core.Triple
	err     error
	done    bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Reader{scanner: sc}
}

// Next advances to the next statement, returning false at EOF or on error.
func (r *Reader) Next() bool {
	if r.done || r.err != nil {
		return false
	}
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := r.parseLine(line)
		if err != nil {
			r.err = err
			return false
		}
		r.cur = t
		return true
	}
	r.done = true
	r.err = r.scanner.Err()
	return false
}

// Triple returns the current statement. Valid only after Next returned true.
func (r *Reader) Triple() core.Triple { return r.cur }

// Err returns the error that terminated reading, if any.
func (r *Reader) Err() error { return r.err }

func (r *Reader) parseLine(line string) (core.Triple, error) {
	subject, rest, err := r.scanTerm(line)
	if err != nil {
		return core.Triple{}, err
	}
	predicate, rest, err := r.scanTerm(rest)
	if err != nil {
		return core.Triple{}, err
	}
	object, rest, err := r.scanTerm(rest)
	if err != nil {
		return core.Triple{}, err
	}
	rest = strings.TrimSpace(rest)
	if rest != "." {
		return core.Triple{}, &ParseError{Line: r.line, Msg: "statement must end with '.'"}
	}
	return core.Triple{Subject: subject, Predicate: predicate, Object: object}, nil
}

// scanTerm consumes one term off the front of s and returns it with the
// remainder of the line.
func (r *Reader) scanTerm(s string) (string, string, error) {
	s = strings.TrimLeft(s, " \t")
	if s == "" {
		return "", "", &ParseError{Line: r.line, Msg: "unexpected end of statement"}
	}

	switch s[0] {
	case '<':
		end := strings.IndexByte(s, '>')
		if end < 0 {
			return "", "", &ParseError{Line: r.line, Msg: "unterminated IRI"}
		}
		return s[1:end], s[end+1:], nil

	case '_':
		if !strings.HasPrefix(s, "_:") {
			return "", "", &ParseError{Line: r.line, Msg: "malformed blank node"}
		}
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			end = len(s)
		}
		return s[:end], s[end:], nil

	case '"':
		end := closingQuote(s)
		if end < 0 {
			return "", "", &ParseError{Line: r.line, Msg: "unterminated literal"}
		}
		term := s[:end+1]
		rest := s[end+1:]

		// Optional language tag or datatype suffix, kept inside the term.
		switch {
		case strings.HasPrefix(rest, "@"):
			n := strings.IndexAny(rest, " \t")
			if n < 0 {
				n = len(rest)
			}
			term += rest[:n]
			rest = rest[n:]
		case strings.HasPrefix(rest, "^^<"):
			n := strings.IndexByte(rest, '>')
			if n < 0 {
				return "", "", &ParseError{Line: r.line, Msg: "unterminated datatype IRI"}
			}
			term += rest[:n+1]
			rest = rest[n+1:]
		}
		return term, rest, nil
	}
	return "", "", &ParseError{Line: r.line, Msg: fmt.Sprintf("unexpected character %q", s[0])}
}

// closingQuote returns the index of the quote ending the literal that starts
// at s[0], honoring backslash escapes, or -1.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// Writer encodes triples as N-Triples statements.
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one statement.
func (w *Writer) Write(t core.Triple) error {
	if _, err := fmt.Fprintf(w.w, "%s %s %s .\n",
		FormatTerm(t.Subject), FormatTerm(t.Predicate), FormatTerm(t.Object)); err != nil {
		return err
	}
	return nil
}

// Flush flushes buffered statements.
func (w *Writer) Flush() error { return w.w.Flush() }

// FormatTerm renders an engine term in N-Triples syntax. Literals and blank
// nodes are stored in wire form already; anything else is an IRI.
func FormatTerm(term string) string {
	if strings.HasPrefix(term, `"`) || strings.HasPrefix(term, "_:") {
		return term
	}
	return "<" + term + ">"
}

// Package engine defines the contract between the document bridge and an
// indexed triple dataset implementation.
//
// The bridge in the root package is engine-agnostic: it only ever calls the
// three primitives below (map a dataset file, iterate pattern matches,
// release the handle). The dataset package provides the default
// implementation; any engine satisfying these interfaces can be plugged in
// via tripod.WithEngine.
package engine

import "github.com/triplekit/tripod/core"

// Engine maps dataset files into queryable Datasets.
type Engine interface {
	// Map opens the dataset at path. It may block on I/O; the bridge only
	// ever calls it from a worker goroutine. On failure no handle is
	// retained.
	Map(path string) (Dataset, error)
}

// Dataset is an immutable, mapped triple collection.
//
// Implementations must support concurrent Match calls on the same Dataset:
// the bridge runs searches from multiple worker goroutines against one
// handle. Close must be called exactly once, after all iterators obtained
// from Match have been closed.
type Dataset interface {
	// Match returns an iterator over all triples matching the pattern.
	// An empty string component matches any term. The iterator order is
	// engine-defined but stable across identical calls.
	Match(subject, predicate, object string) (Iterator, error)

	// NumTriples returns the total number of triples in the dataset.
	NumTriples() int

	// Close releases the mapping and any associated resources.
	Close() error
}

// Iterator is a lazy, finite sequence of triples. Callers must drain or
// Close it; Close is idempotent and safe after Next returns false.
type Iterator interface {
	// Next advances to the next triple, returning false when the sequence
	// is exhausted or an error occurred.
	Next() bool

	// Triple returns the current triple. Valid only after Next returned true.
	Triple() core.Triple

	// Err returns the error that terminated iteration, if any.
	Err() error

	// Close releases iterator resources.
	Close() error
}

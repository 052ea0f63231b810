package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/triplekit/tripod/core"
)

// Memory is an in-memory Engine keyed by path. It exists for tests and for
// embedding small fixed datasets without touching the filesystem.
type Memory struct {
	datasets map[string][]core.Triple
}

// NewMemory creates an empty in-memory engine.
func NewMemory() *Memory {
	return &Memory{datasets: make(map[string][]core.Triple)}
}

// Add registers triples under path. Later Map calls observe the slice as-is;
// callers must not mutate it afterwards.
func (m *Memory) Add(path string, triples []core.Triple) {
	m.datasets[path] = triples
}

// Map implements Engine.
func (m *Memory) Map(path string) (Dataset, error) {
	triples, ok := m.datasets[path]
	if !ok {
		return nil, fmt.Errorf("no dataset at %q", path)
	}
	return &memoryDataset{triples: triples}, nil
}

type memoryDataset struct {
	triples []core.Triple
	closed  atomic.Bool
}

func (d *memoryDataset) Match(subject, predicate, object string) (Iterator, error) {
	if d.closed.Load() {
		return nil, fmt.Errorf("dataset is closed")
	}
	return &sliceIterator{
		triples: d.triples,
		pattern: core.Pattern{Subject: subject, Predicate: predicate, Object: object},
	}, nil
}

func (d *memoryDataset) NumTriples() int { return len(d.triples) }

func (d *memoryDataset) Close() error {
	if d.closed.Swap(true) {
		return fmt.Errorf("dataset closed twice")
	}
	return nil
}

// sliceIterator filters a triple slice against a pattern in slice order.
type sliceIterator struct {
	triples []core.Triple
	pattern core.Pattern
	pos     int
	cur     core.Triple
}

func (it *sliceIterator) Next() bool {
	for it.pos < len(it.triples) {
		t := it.triples[it.pos]
		it.pos++
		if it.pattern.Matches(t) {
			it.cur = t
			return true
		}
	}
	return false
}

func (it *sliceIterator) Triple() core.Triple { return it.cur }
func (it *sliceIterator) Err() error          { return nil }
func (it *sliceIterator) Close() error        { return nil }

package tripod

import (
	"sync"
	"sync/atomic"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/engine"
	"github.com/triplekit/tripod/internal/dispatch"
)

// State is a Document's lifecycle position.
type State uint8

const (
	// StateUninitialized is a Document before a successful open populates it.
	StateUninitialized State = iota
	// StateOpen is a queryable Document holding a dataset handle.
	StateOpen
	// StateClosed is a Document after Close; terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// Document is a queryable view of one mapped dataset. Documents are created
// by Bridge.OpenDocument and hold the dataset handle exclusively until
// Close.
//
// The invariant state == StateOpen iff handle != nil holds under mu. The
// handle itself is reference counted: Close drops the Document's reference
// immediately and synchronously, while each in-flight search holds its own,
// so the engine-side release happens exactly once, after the last reader is
// done, and Close never blocks.
type Document struct {
	bridge *Bridge
	path   string

	mu     sync.RWMutex
	state  State
	handle *handleRef
}

func newDocument(b *Bridge, path string, ds engine.Dataset) *Document {
	return &Document{
		bridge: b,
		path:   path,
		state:  StateOpen,
		handle: newHandleRef(ds),
	}
}

// Search asynchronously matches the triple pattern against the document's
// dataset and delivers the full result sequence through cb. Each component
// is a concrete term or the empty-string wildcard. Search returns
// immediately; cb is invoked exactly once, on the bridge's dispatch
// goroutine, with either the complete match sequence in engine iterator
// order or an error, never both and never a truncated mix.
//
// A Document that is not open fails with an error unwrapping to
// ErrClosedDocument, still delivered through cb.
func (d *Document) Search(subject, predicate, object string, cb SearchCallback) {
	d.mu.RLock()
	handle := d.handle
	open := d.state == StateOpen
	d.mu.RUnlock()

	// The task holds its own handle reference for the whole execute+dispatch
	// span; acquire can only fail if Close won the race just now.
	if !open || handle == nil || !handle.acquire() {
		d.bridge.submitOrFail(&dispatch.Task{
			Execute:  func() error { return &ClosedDocumentError{Op: "search"} },
			Complete: func(err error) { cb(nil, err) },
		}, func(err error) { cb(nil, err) })
		return
	}

	// Pattern strings are copied into the task by value; results live in
	// the task closure, shared with nothing.
	pattern := core.Pattern{Subject: subject, Predicate: predicate, Object: object}
	var results []core.Triple

	task := &dispatch.Task{
		Execute: func() error {
			matched, err := drainMatches(handle.dataset, pattern)
			if err != nil {
				return &SearchFailedError{Pattern: pattern, cause: err}
			}
			results = matched
			return nil
		},
		Complete: func(err error) {
			handle.release()
			d.bridge.logger.LogSearch(pattern.String(), len(results), err)
			if err != nil {
				cb(nil, err)
				return
			}
			cb(results, nil)
		},
	}
	d.bridge.submitOrFail(task, func(err error) {
		handle.release()
		cb(nil, err)
	})
}

// drainMatches runs the blocking engine query and drains the lazy iterator
// into an ordered slice, releasing the iterator whether or not draining
// completed.
func drainMatches(ds engine.Dataset, p core.Pattern) ([]core.Triple, error) {
	it, err := ds.Match(p.Subject, p.Predicate, p.Object)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []core.Triple
	for it.Next() {
		out = append(out, it.Triple())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close transitions the Document to StateClosed and drops its handle
// reference. It is synchronous, idempotent, and never fails; in-flight
// searches are not cancelled; the handle is released once the last of them
// completes. An optional callback is invoked once, synchronously, after the
// state transition.
func (d *Document) Close(cb ...CloseCallback) {
	d.mu.Lock()
	handle := d.handle
	alreadyClosed := d.state == StateClosed
	d.state = StateClosed
	d.handle = nil
	d.mu.Unlock()

	if !alreadyClosed {
		if handle != nil {
			handle.release()
		}
		d.bridge.logger.LogClose(d.path)
	}
	for _, fn := range cb {
		fn()
	}
}

// IsClosed reports whether the Document has been closed. Pure read, no side
// effects.
func (d *Document) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state == StateClosed
}

// Path returns the dataset path this Document was opened from.
func (d *Document) Path() string { return d.path }

// NumTriples returns the dataset's total triple count, or 0 if the Document
// is not open.
func (d *Document) NumTriples() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.state != StateOpen {
		return 0
	}
	return d.handle.dataset.NumTriples()
}

// handleRef reference counts an engine.Dataset. The count starts at one for
// the owning Document; searches acquire/release around their execute+dispatch
// span. Whoever drops the count to zero closes the dataset, exactly once
// and never while a reader still holds a reference.
type handleRef struct {
	dataset engine.Dataset
	refs    atomic.Int32
}

func newHandleRef(ds engine.Dataset) *handleRef {
	h := &handleRef{dataset: ds}
	h.refs.Store(1)
	return h
}

// acquire takes a reference, failing if the count already hit zero.
func (h *handleRef) acquire() bool {
	for {
		n := h.refs.Load()
		if n <= 0 {
			return false
		}
		if h.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// release drops a reference, closing the dataset on the last one.
func (h *handleRef) release() {
	if h.refs.Add(-1) == 0 {
		_ = h.dataset.Close()
	}
}

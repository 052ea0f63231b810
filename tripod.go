// Package tripod bridges hosts with callback-driven, single-threaded
// execution models to compressed, indexed, read-only triple datasets.
//
// Opening a dataset and running triple-pattern searches both block on file
// mapping and index traversal. The Bridge keeps that work off the caller's
// goroutine: operations return immediately, execute on a bounded worker
// pool, and deliver their results through callbacks that all run on one
// dispatch goroutine. Callbacks never race with each other, with worker
// execution, or with document state transitions.
//
// # Quick start
//
//	bridge := tripod.New()
//	defer bridge.Close()
//
//	done := make(chan struct{})
//	bridge.OpenDocument("dataset.tpd", func(doc *tripod.Document, err error) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    doc.Search("", "http://xmlns.com/foaf/0.1/name", "", func(triples []core.Triple, err error) {
//	        defer close(done)
//	        if err != nil {
//	            log.Fatal(err)
//	        }
//	        for _, t := range triples {
//	            fmt.Println(t.Subject, t.Object)
//	        }
//	        doc.Close()
//	    })
//	})
//	<-done
//
// The empty string is the wildcard pattern component.
//
// # Handle lifetime
//
// Document.Close is synchronous and idempotent, and never waits for
// in-flight searches: the underlying dataset handle is reference counted,
// so the last finishing search releases it. A search started after Close
// fails with ErrClosedDocument through its callback.
package tripod

import (
	"sync/atomic"

	"github.com/triplekit/tripod/core"
	"github.com/triplekit/tripod/dataset"
	"github.com/triplekit/tripod/engine"
	"github.com/triplekit/tripod/internal/dispatch"
)

// Triple is re-exported for callers that only import the root package.
type Triple = core.Triple

// OpenCallback receives the outcome of OpenDocument. Exactly one of doc and
// err is non-nil.
type OpenCallback func(doc *Document, err error)

// SearchCallback receives the outcome of Document.Search. On error the
// triple slice is nil; results are never partial.
type SearchCallback func(triples []core.Triple, err error)

// CloseCallback is invoked by Document.Close after the state transition.
type CloseCallback func()

// Bridge owns the worker pool and the dispatch goroutine. Construct one per
// process with New and share it; all Documents it opens route their
// callbacks through its single dispatcher.
type Bridge struct {
	pool   *dispatch.Pool
	engine engine.Engine
	logger *Logger
	closed atomic.Bool
}

// New creates a Bridge.
func New(optFns ...Option) *Bridge {
	opts := options{
		engine: dataset.New(),
		logger: NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Bridge{
		pool:   dispatch.NewPool(opts.workers),
		engine: opts.engine,
		logger: opts.logger,
	}
}

// OpenDocument asynchronously maps the dataset at path and delivers a new
// open Document through cb. OpenDocument itself returns immediately; cb is
// invoked exactly once, on the dispatch goroutine.
func (b *Bridge) OpenDocument(path string, cb OpenCallback) {
	if path == "" {
		b.submitOrFail(&dispatch.Task{
			Execute: func() error {
				return &OpenFailedError{Path: path, cause: errEmptyPath}
			},
			Complete: func(err error) {
				b.logger.LogOpen(path, 0, err)
				cb(nil, err)
			},
		}, func(err error) { cb(nil, err) })
		return
	}

	var ds engine.Dataset
	b.submitOrFail(&dispatch.Task{
		Execute: func() error {
			mapped, err := b.engine.Map(path)
			if err != nil {
				return &OpenFailedError{Path: path, cause: err}
			}
			ds = mapped
			return nil
		},
		Complete: func(err error) {
			if err != nil {
				b.logger.LogOpen(path, 0, err)
				cb(nil, err)
				return
			}
			b.logger.LogOpen(path, ds.NumTriples(), nil)
			cb(newDocument(b, path, ds), nil)
		},
	}, func(err error) { cb(nil, err) })
}

// Close shuts the bridge down: queued tasks still execute and their
// callbacks are delivered before Close returns. Documents opened through
// the bridge remain valid for synchronous Close but not for Search.
// Idempotent.
//
// Close must not be called from inside an open or search callback: it
// waits for the dispatch goroutine to drain, and that is the goroutine
// running the callback, so the call would deadlock. Call it from the
// goroutine that owns the Bridge.
func (b *Bridge) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.pool.Close()
}

// submitOrFail enqueues a task, reporting a rejected submit (closed bridge)
// through fail on the caller's goroutine.
func (b *Bridge) submitOrFail(task *dispatch.Task, fail func(err error)) {
	if err := b.pool.Submit(task); err != nil {
		fail(ErrBridgeClosed)
	}
}

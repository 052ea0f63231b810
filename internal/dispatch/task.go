package dispatch

import "fmt"

// Task is one unit of deferred work. Execute runs exactly once on a worker
// goroutine with exclusive access to the task's state; Complete runs exactly
// once afterwards on the control goroutine with the error Execute produced.
//
// A task never shares mutable state with other in-flight tasks: inputs are
// copied in by the caller at construction time, results live in the closure
// captured by Execute and are read only by Complete.
type Task struct {
	// Execute performs the blocking work. It must not touch callback
	// machinery or any state owned by the control goroutine.
	Execute func() error

	// Complete delivers the outcome. It is the only place a callback may be
	// invoked from.
	Complete func(err error)

	// err carries the Execute outcome from the worker to the control
	// goroutine. Write-once by run, read-once by the dispatch loop.
	err error
}

// run invokes Execute, converting a panic into an ordinary error so a
// misbehaving task can never take down a worker or the pool.
func (t *Task) run() {
	defer func() {
		if r := recover(); r != nil {
			t.err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	t.err = t.Execute()
}

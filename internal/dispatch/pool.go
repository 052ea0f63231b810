// Package dispatch runs tasks on a bounded pool of worker goroutines and
// delivers their completions, in completion order, to a single control
// goroutine. Callbacks therefore never race with worker execution and never
// run concurrently with each other.
package dispatch

import (
	"errors"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned by Submit after Close has been called.
var ErrPoolClosed = errors.New("dispatch: pool is closed")

// Pool executes Tasks on a fixed set of worker goroutines. Completed tasks
// are funneled through a single completion queue drained by one dispatch
// goroutine, which invokes each task's Complete exactly once.
//
// Admission is unbounded: Submit only appends to an internal queue and
// returns, so callers are never blocked behind slow task execution. Only
// the worker count is bounded.
type Pool struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*Task
	closed bool

	completions chan *Task
	workerWg    sync.WaitGroup
	dispatchWg  sync.WaitGroup
}

// NewPool creates a pool with numWorkers worker goroutines plus one dispatch
// goroutine. If numWorkers <= 0, GOMAXPROCS is used.
func NewPool(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}

	p := &Pool{
		completions: make(chan *Task, numWorkers*2),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workerWg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}

	p.dispatchWg.Add(1)
	go p.dispatch()

	return p
}

// worker pulls queued tasks, executes them and hands them to the completion
// queue. The completion send is unconditional: every executed task must be
// dispatched, so completions are never dropped even during shutdown. Workers
// exit only once the queue is drained, so Close never abandons accepted
// tasks.
func (p *Pool) worker() {
	defer p.workerWg.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.mu.Unlock()

		task.run()
		p.completions <- task
	}
}

// dispatch is the control goroutine: it drains the completion queue in FIFO
// order and runs each task's Complete exactly once.
func (p *Pool) dispatch() {
	defer p.dispatchWg.Done()

	for task := range p.completions {
		task.Complete(task.err)
	}
}

// Submit enqueues a task for execution and returns immediately, regardless
// of how many tasks are already queued or executing. The task's Complete
// will be invoked exactly once, on the dispatch goroutine, after Execute
// finishes.
func (p *Pool) Submit(task *Task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.cond.Signal()
	return nil
}

// Close shuts the pool down gracefully: already-submitted tasks still
// execute and their completions are dispatched before Close returns.
// Idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cond.Broadcast()
	p.workerWg.Wait()
	close(p.completions)
	p.dispatchWg.Wait()
}

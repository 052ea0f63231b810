package dispatch

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool_ExecuteThenComplete(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	var executed atomic.Bool
	done := make(chan error, 1)

	task := &Task{
		Execute: func() error {
			executed.Store(true)
			return nil
		},
		Complete: func(err error) {
			if !executed.Load() {
				t.Error("Complete ran before Execute finished")
			}
			done <- err
		},
	}
	if err := p.Submit(task); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected task error: %v", err)
	}
}

func TestPool_ErrorReachesComplete(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	want := errors.New("boom")
	done := make(chan error, 1)
	if err := p.Submit(&Task{
		Execute:  func() error { return want },
		Complete: func(err error) { done <- err },
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := <-done; !errors.Is(got, want) {
		t.Fatalf("Complete error = %v, want %v", got, want)
	}
}

func TestPool_PanicIsIsolated(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	done := make(chan error, 1)
	if err := p.Submit(&Task{
		Execute:  func() error { panic("worker bug") },
		Complete: func(err error) { done <- err },
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if got := <-done; got == nil {
		t.Fatal("expected an error from a panicking task")
	}

	// The pool must still accept and run tasks afterwards.
	if err := p.Submit(&Task{
		Execute:  func() error { return nil },
		Complete: func(err error) { done <- err },
	}); err != nil {
		t.Fatalf("Submit after panic failed: %v", err)
	}
	if got := <-done; got != nil {
		t.Fatalf("pool unhealthy after panic: %v", got)
	}
}

func TestPool_CompletionsAreSerialized(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	const n = 200
	var inComplete atomic.Int32
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		err := p.Submit(&Task{
			Execute: func() error { return nil },
			Complete: func(err error) {
				if inComplete.Add(1) != 1 {
					t.Error("two Complete callbacks ran concurrently")
				}
				inComplete.Add(-1)
				wg.Done()
			},
		})
		if err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}
	wg.Wait()
}

func TestPool_SubmitNeverBlocks(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	release := make(chan struct{})
	var completed atomic.Int32

	// Saturate the single worker, then keep submitting: every Submit must
	// return promptly even though nothing is making progress.
	const n = 32
	for i := 0; i < n; i++ {
		submitted := make(chan struct{})
		go func() {
			err := p.Submit(&Task{
				Execute:  func() error { <-release; return nil },
				Complete: func(err error) { completed.Add(1) },
			})
			if err != nil {
				t.Errorf("Submit failed: %v", err)
			}
			close(submitted)
		}()
		select {
		case <-submitted:
		case <-time.After(time.Second):
			t.Fatalf("Submit %d blocked behind a busy worker", i)
		}
	}

	close(release)
	p.Close()
	if got := completed.Load(); got != n {
		t.Fatalf("%d/%d queued tasks completed", got, n)
	}
}

func TestPool_CloseDrainsAndRejects(t *testing.T) {
	p := NewPool(2)

	const n = 50
	var completed atomic.Int32
	for i := 0; i < n; i++ {
		if err := p.Submit(&Task{
			Execute:  func() error { return nil },
			Complete: func(err error) { completed.Add(1) },
		}); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
	}

	p.Close()
	if got := completed.Load(); got != n {
		t.Fatalf("Close returned with %d/%d completions dispatched", got, n)
	}

	if err := p.Submit(&Task{Execute: func() error { return nil }, Complete: func(error) {}}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("Submit after Close = %v, want ErrPoolClosed", err)
	}

	p.Close() // idempotent
}

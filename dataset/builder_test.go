package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/triplekit/tripod/resource"
)

// overlapWriter records how many Build calls are writing at the same time.
type overlapWriter struct {
	active  *atomic.Int32
	maxSeen *atomic.Int32
	written atomic.Int64
}

func (w *overlapWriter) Write(p []byte) (int, error) {
	n := w.active.Add(1)
	for {
		max := w.maxSeen.Load()
		if n <= max || w.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	w.written.Add(int64(len(p)))
	w.active.Add(-1)
	return len(p), nil
}

func TestBuildHonorsJobLimit(t *testing.T) {
	jobs := resource.NewController(resource.Config{MaxBackgroundJobs: 1})

	var active, maxSeen atomic.Int32
	const builds = 4

	var wg sync.WaitGroup
	wg.Add(builds)
	sinks := make([]*overlapWriter, builds)
	infos := make([]*BuildInfo, builds)
	for i := 0; i < builds; i++ {
		sinks[i] = &overlapWriter{active: &active, maxSeen: &maxSeen}
		go func(i int) {
			defer wg.Done()
			info, err := Build(context.Background(), sinks[i], NewSliceSource(fixtureTriples), func(o *BuildOptions) {
				o.Jobs = jobs
			})
			assert.NoError(t, err)
			infos[i] = info
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load(), "builds sharing a one-slot controller overlapped")
	for i, sink := range sinks {
		require.NotNil(t, infos[i])
		// Every byte, trailer included, went through the controlled writer.
		assert.Equal(t, infos[i].Bytes, sink.written.Load())
	}
}

func TestBuildJobSlotReleasedOnCancel(t *testing.T) {
	jobs := resource.NewController(resource.Config{MaxBackgroundJobs: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, &overlapWriter{active: new(atomic.Int32), maxSeen: new(atomic.Int32)},
		NewSliceSource(fixtureTriples), func(o *BuildOptions) { o.Jobs = jobs })
	require.Error(t, err)

	// The slot must be free again for the next build.
	acquired := make(chan error, 1)
	go func() {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer waitCancel()
		acquired <- jobs.AcquireJob(waitCtx)
	}()
	require.NoError(t, <-acquired)
	jobs.ReleaseJob()
}

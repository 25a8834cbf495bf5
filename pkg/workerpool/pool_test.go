package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

func TestPool_SubmitAndExecute(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Shutdown()

	const n = 100
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		require.NoError(t, pool.SubmitWait(context.Background(), func() {
			defer wg.Done()
			count.Add(1)
		}))
	}

	wg.Wait()
	assert.EqualValues(t, n, count.Load())
}

func TestPool_ErrPoolFull(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-blocker
	}))
	<-started

	// Queue holds 2x the worker count.
	require.NoError(t, pool.Submit(func() {}))
	require.NoError(t, pool.Submit(func() {}))

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolFull)
	close(blocker)
}

func TestPool_SubmitWaitHonoursContext(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	blocker := make(chan struct{})
	defer close(blocker)
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func() {
		close(started)
		<-blocker
	}))
	<-started
	require.NoError(t, pool.Submit(func() {}))
	require.NoError(t, pool.Submit(func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitWait(ctx, func() {}), context.DeadlineExceeded)
}

func TestPool_ErrPoolClosed(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func() {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.SubmitWait(context.Background(), func() {}), workerpool.ErrPoolClosed)
	pool.Shutdown()
}

func TestPool_ShutdownRunsQueuedTasks(t *testing.T) {
	pool := workerpool.New(2)

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		require.NoError(t, pool.SubmitWait(context.Background(), func() {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		}))
	}
	pool.Shutdown()

	assert.EqualValues(t, 4, ran.Load())
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Shutdown()

	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pool.SubmitWait(context.Background(), func() {
		defer wg.Done()
		panic("boom")
	}))
	wg.Wait()

	normal := make(chan struct{})
	require.NoError(t, pool.SubmitWait(context.Background(), func() { close(normal) }))

	select {
	case <-normal:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not recover from panic")
	}
}

package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/pkg/queue"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
)

var (
	echoCalls atomic.Int32
	failCalls atomic.Int32
)

type echoJob struct {
	Val string `json:"val"`
}

func (j *echoJob) Handle(context.Context) error {
	if j.Val == "" {
		return errors.New("payload lost")
	}
	echoCalls.Add(1)
	return nil
}

type failJob struct{}

func (j *failJob) Handle(context.Context) error {
	failCalls.Add(1)
	return errors.New("always fails")
}

func newManager(t *testing.T, opts queue.Options) *queue.Manager {
	t.Helper()
	if opts.Backoff == nil {
		opts.Backoff = func(int) time.Duration { return time.Millisecond }
	}
	m := queue.New(opts)
	m.Register(func() queue.Job { return &echoJob{} })
	m.Register(func() queue.Job { return &failJob{} })

	ctx, cancel := context.WithCancel(context.Background())
	m.StartWorkers(ctx, 2)
	t.Cleanup(func() {
		cancel()
		m.Wait()
	})
	return m
}

func TestDispatchAndProcess(t *testing.T) {
	m := newManager(t, queue.Options{})
	before := echoCalls.Load()

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "hello"}))

	assert.Eventually(t, func() bool { return echoCalls.Load() == before+1 }, 2*time.Second, 5*time.Millisecond)
}

func TestDispatchRejectsUnregisteredJob(t *testing.T) {
	m := queue.New(queue.Options{})
	err := m.Dispatch(context.Background(), &echoJob{Val: "x"})
	assert.ErrorContains(t, err, "not registered")
}

func TestFailedJobIsRetriedThenPersisted(t *testing.T) {
	db := testkit.NewDB(t)
	m := newManager(t, queue.Options{DB: db, MaxRetry: 2})
	before := failCalls.Load()

	require.NoError(t, m.Dispatch(context.Background(), &failJob{}))

	assert.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, before+2, failCalls.Load())

	var rows []queue.FailedJob
	require.Eventually(t, func() bool {
		rows = nil
		return db.Find(&rows).Error == nil && len(rows) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "queue_test.failJob", rows[0].JobType)
	assert.Equal(t, 2, rows[0].Attempts)
	assert.Equal(t, "always fails", rows[0].Error)
}

func TestMemoryDriverFull(t *testing.T) {
	d := queue.NewMemoryDriver(1)
	require.NoError(t, d.Push(context.Background(), []byte("a")))
	assert.ErrorIs(t, d.Push(context.Background(), []byte("b")), queue.ErrQueueFull)
	assert.Equal(t, 1, d.Len())

	got, err := d.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
}

func TestMemoryDriverPopHonoursContext(t *testing.T) {
	d := queue.NewMemoryDriver(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := d.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

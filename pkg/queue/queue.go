// Package queue runs background jobs. Jobs are serialised to JSON and pushed
// onto a Driver (in-memory channel or Redis list); workers pop, decode them
// through the registry and retry failures before recording them as failed.
//
//	m := queue.New(queue.Options{Driver: queue.NewMemoryDriver(1000), DB: db})
//	m.Register(func() queue.Job { return &jobs.RecordAudit{} })
//	m.StartWorkers(ctx, 2)
//	_ = m.Dispatch(ctx, &jobs.RecordAudit{ProductID: 1})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	// Handle executes the job. Return a non-nil error to signal failure.
	Handle(ctx context.Context) error
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available or ctx ends. A nil payload
	// with a nil error means "nothing yet, ask again".
	Pop(ctx context.Context) ([]byte, error)
}

// Options configures a Manager.
type Options struct {
	Driver   Driver
	DB       *gorm.DB // failed jobs are persisted here when set
	MaxRetry int
	Backoff  func(attempt int) time.Duration
}

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	db       *gorm.DB
	maxRetry int
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup
}

// New builds a Manager. A nil driver defaults to an in-memory one.
func New(opts Options) *Manager {
	m := &Manager{
		driver:   opts.Driver,
		registry: map[string]func() Job{},
		db:       opts.DB,
		maxRetry: opts.MaxRetry,
		backoff:  opts.Backoff,
	}
	if m.driver == nil {
		m.driver = NewMemoryDriver(1000)
	}
	if m.maxRetry <= 0 {
		m.maxRetry = 3
	}
	if m.backoff == nil {
		m.backoff = func(attempt int) time.Duration { return time.Duration(attempt) * time.Second }
	}
	return m
}

// Register makes a job type available for decoding. factory must return a
// fresh pointer each call.
func (m *Manager) Register(factory func() Job) {
	name := typeName(factory())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch pushes job onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	name := typeName(job)

	m.mu.RLock()
	_, known := m.registry[name]
	m.mu.RUnlock()
	if !known {
		return fmt.Errorf("queue: job type %s is not registered", name)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", name, err)
	}
	env, err := json.Marshal(envelope{Type: name, Payload: payload})
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return m.driver.Push(ctx, env)
}

// StartWorkers launches n workers that run until ctx is cancelled. Wait
// blocks until they have all returned.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go m.work(ctx)
	}
	logger.Info("queue: workers started", "count", n)
}

// Wait blocks until every worker started by StartWorkers has exited.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) work(ctx context.Context) {
	defer m.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := m.driver.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			if !sleep(ctx, 500*time.Millisecond) {
				return
			}
			continue
		}
		if raw == nil {
			continue
		}

		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		metrics.RecordQueueJob(env.Type, "unregistered")
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env.Type, env.Payload)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, name string, payload []byte) {
	var lastErr error
	for attempt := 1; attempt <= m.maxRetry; attempt++ {
		if lastErr = job.Handle(ctx); lastErr == nil {
			logger.Debug("queue: job processed", "type", name, "attempt", attempt)
			metrics.RecordQueueJob(name, "processed")
			return
		}

		logger.Warn("queue: job failed", "type", name, "attempt", attempt, "error", lastErr)
		if attempt < m.maxRetry {
			metrics.RecordQueueJob(name, "retried")
			if !sleep(ctx, m.backoff(attempt)) {
				break
			}
		}
	}

	metrics.RecordQueueJob(name, "failed")
	logger.Error("queue: job exhausted retries", "type", name, "error", lastErr)
	m.recordFailure(ctx, name, payload, lastErr, m.maxRetry)
}

// sleep waits for d or until ctx ends, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// typeName is the registry key of a job: its Go type without the pointer star.
func typeName(job Job) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", job), "*")
}

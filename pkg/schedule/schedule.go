// Package schedule runs named background tasks at fixed intervals.
//
//	s := schedule.New()
//	s.Every(time.Hour, "catalog.export", exportSnapshot)
//	s.Start(ctx)
//	// ...
//	s.Wait()
//
// A task never overlaps itself: a tick that finds the previous run still
// going is skipped.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/logger"
)

// Task is one scheduled unit of work.
type Task func(ctx context.Context) error

type entry struct {
	name     string
	interval time.Duration
	task     Task

	mu      sync.Mutex
	lastRun time.Time
	running bool
}

// Scheduler dispatches registered tasks from a single ticker.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
	wg      sync.WaitGroup
}

// New returns a scheduler that checks for due tasks every second.
func New() *Scheduler { return &Scheduler{tick: time.Second} }

// WithTick changes the check resolution.
func (s *Scheduler) WithTick(d time.Duration) *Scheduler {
	if d > 0 {
		s.tick = d
	}
	return s
}

// Every registers task to run every interval, first on the tick after Start.
func (s *Scheduler) Every(interval time.Duration, name string, task Task) {
	if interval <= 0 {
		panic(fmt.Sprintf("schedule: %s: interval must be positive", name))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &entry{name: name, interval: interval, task: task})
}

// Len reports the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start runs the dispatch loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	logger.Info("schedule: started", "tasks", s.Len())
}

// Wait blocks until the loop and every running task have returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("schedule: stopped")
			return
		case now := <-ticker.C:
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.interval {
		e.mu.Unlock()
		return
	}
	if e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping run", "task", e.name)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "task", e.name, "panic", r)
			}
		}()

		start := time.Now()
		if err := e.task(ctx); err != nil {
			logger.Error("schedule: task failed", "task", e.name, "error", err)
			return
		}
		logger.Debug("schedule: task done", "task", e.name, "duration_ms", time.Since(start).Milliseconds())
	}()
}

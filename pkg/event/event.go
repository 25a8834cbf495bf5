// Package event is an in-process publish/subscribe bus. Listeners run on a
// workerpool so that publishing never waits for them.
package event

import (
	"context"
	"sync"

	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

// Handler receives an event payload. The context carries request-scoped
// values (logger, request id) but is detached from request cancellation.
type Handler func(ctx context.Context, payload interface{})

// Bus routes named events to their listeners.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	pool     *workerpool.Pool
}

// NewBus creates a bus. With a nil pool Publish behaves like Fire.
func NewBus(pool *workerpool.Pool) *Bus {
	return &Bus{handlers: map[string][]Handler{}, pool: pool}
}

// Listen registers a handler for the given event name.
func (b *Bus) Listen(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Fire dispatches synchronously to every listener of name.
func (b *Bus) Fire(ctx context.Context, name string, payload interface{}) {
	for _, h := range b.listeners(name) {
		h(ctx, payload)
	}
}

// Publish hands every listener of name to the pool. Listeners that cannot
// be scheduled (pool closed) are logged and skipped.
func (b *Bus) Publish(ctx context.Context, name string, payload interface{}) {
	if b.pool == nil {
		b.Fire(ctx, name, payload)
		return
	}

	detached := context.WithoutCancel(ctx)
	for _, h := range b.listeners(name) {
		h := h
		if err := b.pool.SubmitWait(ctx, func() { h(detached, payload) }); err != nil {
			logger.WithCtx(ctx).Warn("event: listener dropped", "event", name, "error", err)
		}
	}
}

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}

func (b *Bus) listeners(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := make([]Handler, len(b.handlers[name]))
	copy(hs, b.handlers[name])
	return hs
}

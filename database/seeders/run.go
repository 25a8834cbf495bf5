// Package seeders holds the named seed functions run by `catalog seed`.
//
// A seeder registers itself from init() and must be idempotent:
//
//	func init() { Register("products", SeedProducts) }
package seeders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/shashiranjanraj/catalog/pkg/logger"
)

// SeederFunc seeds one concern. Running it twice must not duplicate rows.
type SeederFunc func(ctx context.Context, db *gorm.DB) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// Names lists registered seeders in run order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}

// RunAll executes every registered seeder in registration order, or only
// those named in only. It stops on the first error.
func RunAll(ctx context.Context, db *gorm.DB, only ...string) error {
	mu.Lock()
	current := make([]seederEntry, len(entries))
	copy(current, entries)
	mu.Unlock()

	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	for n := range want {
		if !registered(current, n) {
			return fmt.Errorf("seeder %q is not registered", n)
		}
	}

	for _, e := range current {
		if len(want) > 0 && !want[e.name] {
			continue
		}
		start := time.Now()
		if err := e.fn(ctx, db); err != nil {
			logger.Error("seeder failed", "seeder", e.name, "error", err)
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		logger.Info("seeder done", "seeder", e.name, "duration_ms", time.Since(start).Milliseconds())
	}
	return nil
}

func registered(list []seederEntry, name string) bool {
	for _, e := range list {
		if e.name == name {
			return true
		}
	}
	return false
}

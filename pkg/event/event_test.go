package event_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/catalog/pkg/event"
	"github.com/shashiranjanraj/catalog/pkg/workerpool"
)

func TestFireIsSynchronous(t *testing.T) {
	bus := event.NewBus(nil)

	var got []interface{}
	bus.Listen("product.created", func(_ context.Context, p interface{}) { got = append(got, p) })
	bus.Listen("product.deleted", func(context.Context, interface{}) { t.Error("wrong listener") })

	bus.Fire(context.Background(), "product.created", 7)
	assert.Equal(t, []interface{}{7}, got)
}

func TestPublishRunsOnPool(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.Shutdown()
	bus := event.NewBus(pool)

	var wg sync.WaitGroup
	wg.Add(2)
	for i := 0; i < 2; i++ {
		bus.Listen("product.updated", func(context.Context, interface{}) { wg.Done() })
	}

	bus.Publish(context.Background(), "product.updated", nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listeners did not run")
	}
}

func TestPublishDetachesFromCancellation(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()
	bus := event.NewBus(pool)

	errs := make(chan error, 1)
	bus.Listen("product.created", func(ctx context.Context, _ interface{}) { errs <- ctx.Err() })

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, "product.created", nil)
	cancel()

	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not run")
	}
}

func TestFlush(t *testing.T) {
	bus := event.NewBus(nil)
	bus.Listen("x", func(context.Context, interface{}) { t.Error("flushed listener ran") })
	bus.Flush()
	bus.Fire(context.Background(), "x", nil)
}

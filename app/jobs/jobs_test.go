package jobs_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/app/jobs"
	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/repositories"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/cache"
	"github.com/shashiranjanraj/catalog/pkg/event"
	"github.com/shashiranjanraj/catalog/pkg/queue"
	"github.com/shashiranjanraj/catalog/pkg/testkit"
)

type feedRecorder struct {
	mu   sync.Mutex
	msgs []jobs.FeedMessage
}

func (f *feedRecorder) Broadcast(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, v.(jobs.FeedMessage))
	return nil
}

func (f *feedRecorder) events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.msgs))
	for i, m := range f.msgs {
		out[i] = m.Event
	}
	return out
}

func TestWritesReachAuditTrailAndFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	db := testkit.NewDB(t)
	audits := repositories.NewAuditRepository(db)

	q := queue.New(queue.Options{DB: db, Backoff: func(int) time.Duration { return time.Millisecond }})
	q.Register(jobs.NewRecordAudit(audits))
	q.StartWorkers(ctx, 1)
	defer func() {
		cancel()
		q.Wait()
	}()

	bus := event.NewBus(nil)
	feed := &feedRecorder{}
	jobs.RegisterListeners(bus, q, feed)

	c := cache.New(cache.Options{})
	defer c.Close()
	svc := services.NewProductService(repositories.NewProductRepository(db), services.ProductServiceOptions{Cache: c, Events: bus})

	p, err := svc.Create(ctx, "ada@example.com", models.Product{Name: "Widget", Price: decimal.RequireFromString("9.99")})
	require.NoError(t, err)

	name := "Widget v2"
	res, err := svc.Update(ctx, "ada@example.com", p.ID, p.Version, models.ProductFields{Name: &name})
	require.NoError(t, err)
	require.False(t, res.Conflict)

	require.NoError(t, svc.Delete(ctx, "bob@example.com", p.ID))

	var history []models.ProductAudit
	require.Eventually(t, func() bool {
		history, err = audits.History(ctx, p.ID)
		return err == nil && len(history) == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, models.ActionCreated, history[0].Action)
	assert.Equal(t, models.ActionUpdated, history[1].Action)
	assert.Equal(t, models.ActionDeleted, history[2].Action)
	assert.Equal(t, "bob@example.com", history[2].Actor)
	assert.True(t, history[1].Version.Equal(res.Record.Version))

	assert.Equal(t, []string{
		services.EventProductCreated,
		services.EventProductUpdated,
		services.EventProductDeleted,
	}, feed.events())
}

func TestListenersIgnoreForeignPayloads(t *testing.T) {
	bus := event.NewBus(nil)
	feed := &feedRecorder{}
	jobs.RegisterListeners(bus, nil, feed)

	bus.Fire(context.Background(), services.EventProductCreated, "not a change")
	assert.Empty(t, feed.events())
}

func TestEveryFeedReceivesChanges(t *testing.T) {
	bus := event.NewBus(nil)
	a, b := &feedRecorder{}, &feedRecorder{}
	jobs.RegisterListeners(bus, nil, a, nil, b)

	bus.Fire(context.Background(), services.EventProductUpdated, services.ProductChange{
		Action:  models.ActionUpdated,
		Product: models.Product{ID: 3, Name: "Widget"},
		Actor:   "ada@example.com",
	})

	assert.Equal(t, []string{services.EventProductUpdated}, a.events())
	assert.Equal(t, []string{services.EventProductUpdated}, b.events())
	assert.Equal(t, services.EventProductUpdated, a.msgs[0].EventName())
}

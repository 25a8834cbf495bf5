package jobs

import (
	"context"
	"time"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/app/services"
	"github.com/shashiranjanraj/catalog/pkg/event"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/queue"
)

// Dispatcher queues jobs. *queue.Manager satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, job queue.Job) error
}

// Broadcaster fans a message out to feed subscribers. *ws.Hub and
// *sse.Broker satisfy it.
type Broadcaster interface {
	Broadcast(v any) error
}

// FeedMessage is what change-feed subscribers receive. The actor is left
// out because the feed is public.
type FeedMessage struct {
	Event   string         `json:"event"`
	Action  string         `json:"action"`
	Product models.Product `json:"product"`
	At      time.Time      `json:"at"`
}

// EventName names the message on event-stream feeds.
func (m FeedMessage) EventName() string { return m.Event }

// ProductEvents lists the events published by ProductService.
var ProductEvents = []string{
	services.EventProductCreated,
	services.EventProductUpdated,
	services.EventProductDeleted,
}

// RegisterListeners subscribes the audit trail and the change feeds to every
// product event. q may be nil, as may any feed.
func RegisterListeners(bus *event.Bus, q Dispatcher, feeds ...Broadcaster) {
	for _, name := range ProductEvents {
		name := name
		if q != nil {
			bus.Listen(name, func(ctx context.Context, payload interface{}) {
				change, ok := payload.(services.ProductChange)
				if !ok {
					return
				}
				job := &RecordAudit{
					ProductID: change.Product.ID,
					Action:    change.Action,
					Actor:     change.Actor,
					Version:   change.Product.Version,
					At:        change.At,
				}
				if err := q.Dispatch(ctx, job); err != nil {
					logger.WithCtx(ctx).Error("audit: dispatch failed", "product_id", change.Product.ID, "error", err)
				}
			})
		}
		for _, feed := range feeds {
			if feed == nil {
				continue
			}
			feed := feed
			bus.Listen(name, func(ctx context.Context, payload interface{}) {
				change, ok := payload.(services.ProductChange)
				if !ok {
					return
				}
				msg := FeedMessage{Event: name, Action: change.Action, Product: change.Product, At: change.At}
				if err := feed.Broadcast(msg); err != nil {
					logger.WithCtx(ctx).Warn("feed: broadcast dropped", "event", name, "error", err)
				}
			})
		}
	}
}

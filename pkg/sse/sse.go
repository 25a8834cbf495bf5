// Package sse streams Server-Sent Events. A Broker fans broadcast values out
// to every connected client:
//
//	feed := sse.NewBroker()
//	r.Get("/events", "events", feed.ServeHTTP)
//	feed.Broadcast(msg) // event name from msg.EventName(), else "message"
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shashiranjanraj/catalog/pkg/logger"
)

// ErrClosed is returned by Broadcast after Close.
var ErrClosed = errors.New("sse: broker closed")

const clientBuffer = 32

// Named values choose their own event name.
type Named interface {
	EventName() string
}

// Stream is one client's event stream.
type Stream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// New prepares w for streaming. It returns nil, after answering the
// request, when the writer cannot flush.
func New(w http.ResponseWriter) *Stream {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	if err := rc.Flush(); err != nil {
		w.Header().Del("Content-Type")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})
	return &Stream{w: w, rc: rc}
}

// Send writes a named event whose data line is the JSON encoding of data.
func (s *Stream) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Comment writes an SSE comment, used as a keepalive.
func (s *Stream) Comment(msg string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", msg); err != nil {
		return err
	}
	return s.rc.Flush()
}

type message struct {
	event string
	data  json.RawMessage
}

// Broker fans messages out to connected streams. Slow clients miss
// messages rather than stall Broadcast.
type Broker struct {
	mu        sync.Mutex
	clients   map[chan message]struct{}
	closed    bool
	done      chan struct{}
	heartbeat time.Duration
}

func NewBroker() *Broker {
	return &Broker{
		clients:   make(map[chan message]struct{}),
		done:      make(chan struct{}),
		heartbeat: 15 * time.Second,
	}
}

// SetHeartbeat changes the keepalive interval.
func (b *Broker) SetHeartbeat(d time.Duration) {
	if d > 0 {
		b.heartbeat = d
	}
}

// Broadcast sends v to every connected client.
func (b *Broker) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal: %w", err)
	}
	event := "message"
	if n, ok := v.(Named); ok && n.EventName() != "" {
		event = n.EventName()
	}
	msg := message{event: event, data: data}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
			logger.Warn("sse: client too slow, message dropped", "event", event)
		}
	}
	return nil
}

// ClientCount reports connected clients.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close ends every stream and rejects further broadcasts.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

func (b *Broker) subscribe() (chan message, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, false
	}
	ch := make(chan message, clientBuffer)
	b.clients[ch] = struct{}{}
	return ch, true
}

func (b *Broker) unsubscribe(ch chan message) {
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
}

// ServeHTTP streams broadcasts until the client leaves or the broker closes.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch, ok := b.subscribe()
	if !ok {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer b.unsubscribe(ch)

	stream := New(w)
	if stream == nil {
		return
	}

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-b.done:
			return
		case <-ticker.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		case msg := <-ch:
			if err := stream.Send(msg.event, msg.data); err != nil {
				logger.WithCtx(r.Context()).Debug("sse: write failed", "error", err)
				return
			}
		}
	}
}

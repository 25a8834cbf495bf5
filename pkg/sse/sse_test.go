package sse_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/catalog/pkg/sse"
)

type change struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

func (c change) EventName() string { return c.Name }

func connect(t *testing.T, b *sse.Broker) (*bufio.Reader, *http.Response) {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	t.Cleanup(b.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	return bufio.NewReader(resp.Body), resp
}

// readEvent returns the next event block, skipping comments.
func readEvent(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if line == "" {
			if len(lines) > 0 {
				return lines
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		lines = append(lines, line)
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	b := sse.NewBroker()
	r, resp := connect(t, b)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, b.Broadcast(change{Name: "product.created", ID: 7}))
	assert.Equal(t, []string{
		"event: product.created",
		`data: {"name":"product.created","id":7}`,
	}, readEvent(t, r))

	require.NoError(t, b.Broadcast(map[string]int{"n": 1}))
	assert.Equal(t, []string{"event: message", `data: {"n":1}`}, readEvent(t, r))
}

func TestHeartbeat(t *testing.T) {
	b := sse.NewBroker()
	b.SetHeartbeat(10 * time.Millisecond)
	r, _ := connect(t, b)

	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", line)
}

func TestCloseEndsStreams(t *testing.T) {
	b := sse.NewBroker()
	r, _ := connect(t, b)

	b.Close()
	_, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, errors.Is(b.Broadcast(change{}), sse.ErrClosed))
}

func TestClientLeaving(t *testing.T) {
	b := sse.NewBroker()
	_, resp := connect(t, b)

	resp.Body.Close()
	assert.Eventually(t, func() bool { return b.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

package hub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	return h, cancel
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d, have %d", want, h.ClientCount())
}

func TestHubRegisterAndBroadcast(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	a := NewClient("a", 8)
	b := NewClient("b", 8)
	h.Register(a)
	h.Register(b)
	waitForClients(t, h, 2)

	h.Broadcast([]byte("catalog_updated"))

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "catalog_updated", string(msg))
		case <-time.After(2 * time.Second):
			t.Fatalf("client %s never received broadcast", c.ID)
		}
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	h.Unregister(c)
	waitForClients(t, h, 0)

	select {
	case _, open := <-c.Send:
		assert.False(t, open, "send channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestHubBroadcastSkipsFullClients(t *testing.T) {
	h, cancel := newTestHub(t)
	defer cancel()

	full := NewClient("full", 1)
	full.Send <- []byte("stale")
	h.Register(full)
	healthy := NewClient("healthy", 8)
	h.Register(healthy)
	waitForClients(t, h, 2)

	h.Broadcast([]byte("update"))

	select {
	case msg := <-healthy.Send:
		require.Equal(t, "update", string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("healthy client never received broadcast")
	}
	// The saturated client keeps only its stale message.
	assert.Equal(t, "stale", string(<-full.Send))
}

func TestHubShutdownClosesAll(t *testing.T) {
	h, cancel := newTestHub(t)

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	cancel()

	select {
	case _, open := <-c.Send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel never closed on shutdown")
	}
}

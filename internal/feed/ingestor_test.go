package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmirror/internal/book"
	"bookmirror/pkg/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// feedServer is a fake exchange endpoint pushing the given frames on
// every new connection.
func feedServer(t *testing.T, frames []string, connected chan<- struct{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if connected != nil {
			connected <- struct{}{}
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestIngestorAppliesMessages(t *testing.T) {
	frames := []string{
		`{"e":"depthUpdate","b":[["100","2"],["90","1"]],"a":[["110","3"]]}`,
		`{"e":"depthUpdate","b":[["90","0"]],"a":[["120","1"]]}`,
	}
	server := feedServer(t, frames, nil)
	defer server.Close()

	mirror := book.NewMirror()
	in := NewIngestor(IngestorOpts{
		URL:     wsURL(server),
		Backoff: 10 * time.Millisecond,
		Mirror:  mirror,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	waitFor(t, 2*time.Second, func() bool {
		return mirror.Len(model.BID) == 1 && mirror.Len(model.ASK) == 2
	})

	bestBid, ok := mirror.BestBid()
	require.True(t, ok)
	assert.True(t, bestBid.Equal(decimal.RequireFromString("100")))
	assert.Equal(t, StateConnected, in.State())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ingestor did not stop on cancellation")
	}
	assert.Equal(t, StateDisconnected, in.State())
}

func TestIngestorDropsUndecodableMessageOnly(t *testing.T) {
	frames := []string{
		`this is not json`,
		`{"e":"depthUpdate","b":[["100","2"]],"a":[["110","1"]]}`,
	}
	server := feedServer(t, frames, nil)
	defer server.Close()

	mirror := book.NewMirror()
	in := NewIngestor(IngestorOpts{
		URL:     wsURL(server),
		Backoff: 10 * time.Millisecond,
		Mirror:  mirror,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = in.Run(ctx) }()

	// the valid frame after the garbage one must still arrive on the
	// same connection
	waitFor(t, 2*time.Second, func() bool {
		return mirror.Len(model.BID) == 1
	})
	assert.Equal(t, StateConnected, in.State())
}

func TestIngestorReconnectsAfterDrop(t *testing.T) {
	connected := make(chan struct{}, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connected <- struct{}{}
		// hang up immediately, forcing the client back to Disconnected
		_ = conn.Close()
	}))
	defer server.Close()

	mirror := book.NewMirror()
	in := NewIngestor(IngestorOpts{
		URL:     wsURL(server),
		Backoff: 10 * time.Millisecond,
		Mirror:  mirror,
		Logger:  zerolog.Nop(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = in.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-connected:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected connection attempt %d after backoff", i+1)
		}
	}
}

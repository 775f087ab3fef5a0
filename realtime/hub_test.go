package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(map[string]string{"type": "process.started"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var env struct {
		Timestamp int64             `json:"timestamp"`
		Data      map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, "process.started", env.Data["type"])
	assert.NotZero(t, env.Timestamp)
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(nil)
	for i := 0; i < 300; i++ {
		hub.Broadcast(i)
	}
	assert.Equal(t, 0, hub.Clients())
}

func TestHubRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
}

func TestServeWSReturnsAfterHubStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)

	returned := make(chan struct{}, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r)
		returned <- struct{}{}
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	connected, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer connected.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	// the client registered before shutdown is dropped and its handler exits
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("handler of connected client blocked after hub stopped")
	}

	// a client arriving after shutdown is refused instead of blocking on register
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("handler of late client blocked after hub stopped")
	}
}

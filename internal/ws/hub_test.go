package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("topic"))
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	subscriber, _, err := websocket.DefaultDialer.Dial(url+"?topic=datasets", nil)
	require.NoError(t, err)
	defer subscriber.Close()

	other, _, err := websocket.DefaultDialer.Dial(url+"?topic=other", nil)
	require.NoError(t, err)
	defer other.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("datasets", "reload", map[string]string{"sha256": "0xabc"})

	subscriber.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := subscriber.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "reload", msg.Type)
	assert.Equal(t, "datasets", msg.Topic)
	assert.Equal(t, map[string]any{"sha256": "0xabc"}, msg.Data)

	other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "Expected no message for another topic")
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "datasets")
	}))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServeWSTooManySubscribers(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	hub.maxSubscribers = 0

	rec := httptest.NewRecorder()
	hub.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/", nil), "datasets")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBroadcastDisconnectsLaggingSubscriber(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()
	defer hub.Stop()

	lagging := &Client{hub: hub, send: make(chan []byte), id: "lagging", topic: "datasets"}
	ready := &Client{hub: hub, send: make(chan []byte, 1), id: "ready", topic: "datasets"}
	hub.register <- lagging
	hub.register <- ready
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("datasets", "reload", nil)
	assert.Equal(t, 1, hub.ClientCount())

	_, open := <-lagging.send
	assert.False(t, open)
	payload := <-ready.send
	assert.Contains(t, string(payload), `"type":"reload"`)
}

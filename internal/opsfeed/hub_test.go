package opsfeed

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcastsToConnectedClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	hub.Broadcast("transaction.completed", map[string]interface{}{"transaction_id": "T1"})

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), "transaction.completed")
	require.Contains(t, string(msg), "T1")
}

func TestHubDropsClientWithFullSendBuffer(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &Client{send: make(chan []byte, 1), hub: hub}
	hub.addClient(c)
	c.send <- []byte("occupying the only buffer slot")

	hub.Broadcast("metrics.updated", map[string]interface{}{"count": 1})

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, time.Millisecond)
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &Client{send: make(chan []byte, 1), hub: hub}
	hub.addClient(c)

	hub.removeClient(c)
	require.Equal(t, 0, hub.ClientCount())

	require.NotPanics(t, func() { hub.removeClient(c) })
}

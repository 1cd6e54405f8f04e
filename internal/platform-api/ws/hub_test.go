package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func newServer(t *testing.T) (*Hub, *httptest.Server) {
	hub := NewHub(func(*http.Request) bool { return true }, zap.NewNop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func TestHubDeliversOnlySubscribedTopics(t *testing.T) {
	hub, srv := newServer(t)
	btc := dial(t, srv, "")
	cd := dial(t, srv, "?topics=countdown")

	require.NoError(t, btc.WriteJSON(ClientMsg{Type: "subscribe", Topic: "price:BTC"}))
	require.Eventually(t, func() bool {
		return hub.Subscribers("price:BTC") == 1 && hub.Subscribers("countdown") == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Dispatch([]byte(`{"topic":"price:BTC","payload":{"price":"70000"}}`)))
	hub.Broadcast(Update{Topic: "countdown", Payload: []byte(`{"remainingSeconds":5}`)})

	var got Update
	_ = btc.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, btc.ReadJSON(&got))
	assert.Equal(t, "price:BTC", got.Topic)
	assert.JSONEq(t, `{"price":"70000"}`, string(got.Payload))

	_ = cd.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, cd.ReadJSON(&got))
	assert.Equal(t, "countdown", got.Topic)
}

func TestHubPingAndUnsubscribe(t *testing.T) {
	hub, srv := newServer(t)
	c := dial(t, srv, "?topics=price:ETH")

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "ping"}))
	var pong map[string]string
	_ = c.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, c.ReadJSON(&pong))
	assert.Equal(t, "pong", pong["type"])

	require.NoError(t, c.WriteJSON(ClientMsg{Type: "unsubscribe", Topic: "price:ETH"}))
	require.Eventually(t, func() bool { return hub.Subscribers("price:ETH") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub, srv := newServer(t)
	c := dial(t, srv, "?topics=countdown")
	require.Eventually(t, func() bool { return hub.Subscribers("countdown") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return hub.Subscribers("countdown") == 0 }, time.Second, 10*time.Millisecond)
}

func TestDispatchRejectsGarbage(t *testing.T) {
	hub := NewHub(nil, zap.NewNop())
	assert.Error(t, hub.Dispatch([]byte("nope")))
}

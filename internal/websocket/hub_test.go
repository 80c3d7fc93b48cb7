package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r, r.URL.Query().Get("org"), "user-1")
	}))
	t.Cleanup(func() {
		cancel()
		<-hub.Done()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *gws.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestBroadcastIsOrganizationScoped(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, srv, "org=org-a")
	b := dial(t, srv, "org=org-b")
	require.Eventually(t, func() bool {
		return hub.ClientCount("org-a") == 1 && hub.ClientCount("org-b") == 1
	}, 2*time.Second, 10*time.Millisecond)

	sent := hub.Broadcast("org-a", Event{Type: EventReportUpdated, ReportID: "r1", Version: 3})
	assert.Equal(t, 1, sent)

	ev := readEvent(t, a)
	assert.Equal(t, EventReportUpdated, ev.Type)
	assert.Equal(t, "r1", ev.ReportID)
	assert.EqualValues(t, 3, ev.Version)
	assert.False(t, ev.At.IsZero())

	require.NoError(t, b.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := b.ReadMessage()
	assert.Error(t, err, "other organization must not receive the event")
}

func TestSubscribeFiltersByReport(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "org=org-a&reportId=r2")
	require.Eventually(t, func() bool { return hub.ClientCount("org-a") == 1 }, 2*time.Second, 10*time.Millisecond)

	assert.Zero(t, hub.Broadcast("org-a", Event{Type: EventReportUpdated, ReportID: "r1"}))
	assert.Equal(t, 1, hub.Broadcast("org-a", Event{Type: EventReportUpdated, ReportID: "r2"}))
	assert.Equal(t, "r2", readEvent(t, conn).ReportID)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "UNSUBSCRIBE", "msgId": "m1"}))
	ack := readEvent(t, conn)
	assert.Equal(t, "ACK", ack.Type)

	assert.Equal(t, 1, hub.Broadcast("org-a", Event{Type: EventReportSaved, ReportID: "r1"}))
	assert.Equal(t, EventReportSaved, readEvent(t, conn).Type)
}

func TestPingPong(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "org=org-a")
	require.Eventually(t, func() bool { return hub.ClientCount("org-a") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "PING"}))
	assert.Equal(t, "PONG", readEvent(t, conn).Type)
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "org=org-a")
	require.Eventually(t, func() bool { return hub.ClientCount("org-a") == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount("org-a") == 0 }, 2*time.Second, 10*time.Millisecond)
}

package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	r := mux.NewRouter()
	r.HandleFunc("/ws/{session}", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, session string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(session) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s never reached %d subscribers", session, want)
}

func TestSessionEventReachesSubscriber(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "ABC123")
	waitForSubscribers(t, hub, "ABC123", 1)

	hub.SessionEvent("ABC123", "timer", map[string]interface{}{"time_remaining_seconds": 42})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "timer" {
		t.Fatalf("type = %q, want timer", msg.Type)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok || data["time_remaining_seconds"] != float64(42) {
		t.Errorf("data = %#v", msg.Data)
	}
}

func TestEventsAreScopedToSession(t *testing.T) {
	hub, srv := newTestServer(t)
	connA := dial(t, srv, "AAAA")
	connB := dial(t, srv, "BBBB")
	waitForSubscribers(t, hub, "AAAA", 1)
	waitForSubscribers(t, hub, "BBBB", 1)

	hub.SessionEvent("AAAA", "time_up", map[string]int{"score": 3})

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := connA.ReadJSON(&msg); err != nil {
		t.Fatalf("read on subscribed connection: %v", err)
	}
	if msg.Type != "time_up" {
		t.Errorf("type = %q", msg.Type)
	}

	// The other session's subscriber gets nothing.
	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Error("message leaked across sessions")
	}
}

func TestBroadcastSurvivesDisconnect(t *testing.T) {
	hub, srv := newTestServer(t)
	conn := dial(t, srv, "GONE")
	waitForSubscribers(t, hub, "GONE", 1)

	conn.Close()
	waitForSubscribers(t, hub, "GONE", 0)

	// No subscriber left; this must not panic or block.
	hub.SessionEvent("GONE", "timer", map[string]int{"time_remaining_seconds": 1})
}

func TestMessageEncoding(t *testing.T) {
	msg := Message{Type: "completed", Data: map[string]int{"score": 7}}
	raw, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"completed","data":{"score":7}}` {
		t.Errorf("encoded = %s", raw)
	}
}

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func startHub(t *testing.T, config *HubConfig) (*Hub, string) {
	t.Helper()
	hub := NewHub(config, zap.NewNop())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, hub *Hub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return event
}

func TestBroadcastVersionSaved(t *testing.T) {
	hub, url := startHub(t, &HubConfig{BroadcastVersions: true, AllowedOrigins: []string{"*"}})
	conn := dial(t, hub, url, 1)

	hub.BroadcastEvent(Event{
		Type:       EventTypeVersionSaved,
		DocumentID: "doc-1",
		Data:       VersionSavedEvent{VersionID: "v1", DocumentID: "doc-1", Number: 1},
	})

	event := readEvent(t, conn)
	if event.Type != EventTypeVersionSaved || event.DocumentID != "doc-1" {
		t.Errorf("unexpected event %+v", event)
	}
	data, ok := event.Data.(map[string]interface{})
	if !ok || data["version_id"] != "v1" {
		t.Errorf("unexpected payload %#v", event.Data)
	}
}

func TestDisabledEventTypeIsDropped(t *testing.T) {
	hub, url := startHub(t, &HubConfig{BroadcastVersions: true})
	conn := dial(t, hub, url, 1)

	hub.BroadcastEvent(Event{Type: EventTypeDiffComputed, DocumentID: "doc-1"})
	hub.BroadcastEvent(Event{Type: EventTypeVersionSaved, DocumentID: "doc-1"})

	if event := readEvent(t, conn); event.Type != EventTypeVersionSaved {
		t.Errorf("expected only the version event, got %s", event.Type)
	}
}

func TestSubscriptionFiltersDocuments(t *testing.T) {
	hub, url := startHub(t, &HubConfig{BroadcastVersions: true, BroadcastDiffs: true})
	conn := dial(t, hub, url, 1)

	if err := conn.WriteJSON(ClientMessage{Type: "subscribe", Data: &SubscriptionRequest{DocumentIDs: []string{"doc-2"}}}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	// A ping round trip guarantees the subscription was applied
	if err := conn.WriteJSON(ClientMessage{Type: "ping"}); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if event := readEvent(t, conn); event.Type != EventTypePong {
		t.Fatalf("expected pong, got %s", event.Type)
	}

	hub.BroadcastEvent(Event{Type: EventTypeVersionSaved, DocumentID: "doc-1"})
	hub.BroadcastEvent(Event{Type: EventTypeDiffComputed, DocumentID: "doc-2"})

	if event := readEvent(t, conn); event.Type != EventTypeDiffComputed || event.DocumentID != "doc-2" {
		t.Errorf("expected the doc-2 diff event, got %+v", event)
	}
}

func TestMaxConnections(t *testing.T) {
	hub, url := startHub(t, &HubConfig{MaxConnections: 1})
	dial(t, hub, url, 1)

	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("expected second connection to be refused")
	} else if resp != nil && resp.StatusCode != 503 {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewHub(&HubConfig{AllowedOrigins: []string{"https://review.example.com"}}, zap.NewNop())

	tests := map[string]bool{
		"":                           true,
		"https://review.example.com": true,
		"https://evil.example.com":   false,
	}
	for origin, want := range tests {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		if got := hub.checkOrigin(r); got != want {
			t.Errorf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}

func TestStopTwice(t *testing.T) {
	hub := NewHub(&HubConfig{}, zap.NewNop())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	hub.Stop()
	hub.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"ForwardedChain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "203.0.113.7"},
		{"RealIP", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"PeerAddress", nil, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

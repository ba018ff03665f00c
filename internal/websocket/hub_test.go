package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ============================================================
// Unit Tests
// ============================================================

func TestNewHub(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.DroppedMessages() != 0 {
		t.Errorf("expected 0 dropped messages, got %d", hub.DroppedMessages())
	}
}

func TestOriginChecker_Check(t *testing.T) {
	checker := NewOriginChecker([]string{"http://localhost:3000", " https://example.com "})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},                       // empty origin allowed
		{"http://localhost:3000", true},  // allowed
		{"https://example.com", true},    // allowed, trimmed
		{"http://evil.com", false},       // not allowed
		{"http://localhost:8080", false}, // not in list
	}

	for _, tt := range tests {
		got := checker.Check(tt.origin)
		if got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestOriginChecker_AllowAll(t *testing.T) {
	for _, origins := range [][]string{nil, {"*"}, {"http://localhost:3000", "*"}} {
		checker := NewOriginChecker(origins)
		if !checker.Check("https://evil.com") {
			t.Errorf("origins %v must allow all", origins)
		}
	}
}

func TestHub_BroadcastNonBlocking(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)

	// Run не запущен: очередь заполняется и лишние сообщения отбрасываются
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBufferSize+44; i++ {
			hub.Broadcast([]byte(`{"type":"trade"}`))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full queue")
	}
	if got := hub.DroppedMessages(); got != 44 {
		t.Errorf("dropped = %d, want 44", got)
	}
}

func TestHub_StopsOnCancel(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("Hub.Run() did not exit after cancel")
	}
}

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"subscribe", `{"action":"subscribe","types":["trade","risk"]}`, false},
		{"unsubscribe all", `{"action":"unsubscribe"}`, false},
		{"unknown action", `{"action":"pause"}`, true},
		{"unknown type", `{"action":"subscribe","types":["balance"]}`, true},
		{"not json", `subscribe`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseClientMessage([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMessageType(t *testing.T) {
	if got := messageType([]byte(`{"type":"risk","timestamp":"2024-01-01T00:00:00Z","data":{}}`)); got != "risk" {
		t.Errorf("got %q, want risk", got)
	}
	if got := messageType([]byte(`not json`)); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestClientWants(t *testing.T) {
	c := &Client{topics: make(map[string]struct{})}
	if !c.Wants("trade") {
		t.Error("empty subscription must receive everything")
	}

	topics := c.apply(ClientMessage{Action: ActionSubscribe, Types: []string{"risk", "opportunity"}})
	if len(topics) != 2 || topics[0] != "opportunity" || topics[1] != "risk" {
		t.Errorf("topics = %v", topics)
	}
	if c.Wants("trade") || !c.Wants("risk") {
		t.Error("subscription must filter event types")
	}

	c.apply(ClientMessage{Action: ActionUnsubscribe})
	if !c.Wants("trade") {
		t.Error("unsubscribe without types must reset to all events")
	}
}

// ============================================================
// WebSocket end-to-end
// ============================================================

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(2 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestHub_StreamsEvents(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	hub.Broadcast([]byte(`{"type":"trade","data":{"id":"t1"}}`))
	if got := readMessage(t, conn); got != `{"type":"trade","data":{"id":"t1"}}` {
		t.Errorf("got %s", got)
	}
}

func TestHub_SubscriptionFilters(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"subscribe","types":["risk"]}`)); err != nil {
		t.Fatal(err)
	}
	if ack := readMessage(t, conn); !strings.Contains(ack, `"type":"ack"`) {
		t.Fatalf("expected ack, got %s", ack)
	}

	hub.Broadcast([]byte(`{"type":"trade"}`))
	hub.Broadcast([]byte(`{"type":"risk"}`))

	if got := readMessage(t, conn); got != `{"type":"risk"}` {
		t.Errorf("filtered stream must skip trade events, got %s", got)
	}
}

func TestHub_RejectsBadMessage(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn := dialHub(t, hub)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"close_all"}`)); err != nil {
		t.Fatal(err)
	}
	if got := readMessage(t, conn); !strings.Contains(got, `"type":"error"`) {
		t.Errorf("expected error reply, got %s", got)
	}
}

// ============================================================
// Parallel Stress Test
// ============================================================

func TestHub_ConcurrentOperations(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	var wg sync.WaitGroup
	const goroutines = 10
	const operations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				hub.Broadcast([]byte(`{"type":"opportunity"}`))
			}
		}()
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operations; j++ {
				_ = hub.ClientCount()
			}
		}()
	}

	wg.Wait()
}

// BenchmarkHub_Broadcast тестирует скорость broadcast уже сериализованных данных
func BenchmarkHub_Broadcast(b *testing.B) {
	hub := NewHub(zap.NewNop(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	data := []byte(`{"type":"opportunity","data":"benchmark message"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hub.Broadcast(data)
	}
}

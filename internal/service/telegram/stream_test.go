package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	applogger "SigRelay/pkg/logger"

	"github.com/gorilla/websocket"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// gatewayStub is a minimal update-WebSocket endpoint. Each accepted
// connection reads the subscribe frame and then runs handle.
type gatewayStub struct {
	upgrader websocket.Upgrader
	handle   func(connNum int64, conn *websocket.Conn)
	conns    atomic.Int64
}

func (g *gatewayStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	var sub subscribeFrame
	if err := conn.ReadJSON(&sub); err != nil {
		return
	}
	g.handle(g.conns.Add(1), conn)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDeliversUpdates(t *testing.T) {
	stub := &gatewayStub{handle: func(_ int64, conn *websocket.Conn) {
		_ = conn.WriteJSON(updateFrame{ChannelID: 42, Text: "BUY BTCUSDT", SentAt: "2026-08-30T10:00:00Z"})
		// hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream(wsURL(srv), 10*time.Millisecond, time.Hour, testLogger(t))
	msgs, _, err := s.Subscribe(ctx, 42)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case m := <-msgs:
		if m.ChannelID != 42 || m.Text != "BUY BTCUSDT" {
			t.Fatalf("unexpected message %+v", m)
		}
		if m.SentAt.UTC().Hour() != 10 {
			t.Fatalf("sent_at not parsed: %v", m.SentAt)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}
}

func TestStreamPingsReconnectedConnection(t *testing.T) {
	pinged := make(chan struct{}, 1)
	stub := &gatewayStub{handle: func(connNum int64, conn *websocket.Conn) {
		if connNum == 1 {
			// drop the first connection to force a reconnect
			return
		}
		conn.SetPingHandler(func(string) error {
			select {
			case pinged <- struct{}{}:
			default:
			}
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewStream(wsURL(srv), 10*time.Millisecond, 20*time.Millisecond, testLogger(t))
	_, errs, err := s.Subscribe(ctx, 7)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case <-pinged:
	case err := <-errs:
		t.Fatalf("stream failed before ping: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconnected connection never received a ping")
	}
}

package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	drepo "SigRelay/internal/domain/repository"
	"SigRelay/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements a MessageStream backed by the gateway's update
// WebSocket. Each Subscribe call owns one connection; the connection is
// torn down when ctx is cancelled.
type Stream struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *logger.Logger
}

// NewStream creates a new gateway message stream.
func NewStream(websocketURL string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) *Stream {
	return &Stream{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

type subscribeFrame struct {
	Type      string `json:"type"`
	ChannelID int64  `json:"channel_id"`
}

type updateFrame struct {
	ChannelID int64  `json:"channel_id"`
	Text      string `json:"text"`
	SentAt    string `json:"sent_at"`
}

// liveConn guards the current connection so the ping loop keeps following
// it across reconnects.
type liveConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func (l *liveConn) ping() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c == nil {
		return nil
	}
	return l.c.WriteMessage(websocket.PingMessage, nil)
}

// swap installs the new connection and returns the previous one.
func (l *liveConn) swap(c *websocket.Conn) *websocket.Conn {
	l.mu.Lock()
	old := l.c
	l.c = c
	l.mu.Unlock()
	return old
}

func (l *liveConn) close() {
	l.mu.Lock()
	if l.c != nil {
		_ = l.c.Close()
	}
	l.mu.Unlock()
}

// Subscribe connects to the gateway and starts streaming messages for one
// channel. Both returned channels close when ctx is cancelled or the
// connection dies past its reconnect budget.
func (s *Stream) Subscribe(ctx context.Context, channelID int64) (<-chan drepo.RawMessage, <-chan error, error) {
	conn, err := s.dial(ctx, channelID)
	if err != nil {
		return nil, nil, err
	}

	msgs := make(chan drepo.RawMessage, 256)
	errs := make(chan error, 1)
	lc := &liveConn{c: conn}

	go s.pingLoop(ctx, lc)
	go s.readLoop(ctx, lc, conn, channelID, msgs, errs)

	return msgs, errs, nil
}

func (s *Stream) dial(ctx context.Context, channelID int64) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway dial: %w", err)
	}
	if err := conn.WriteJSON(subscribeFrame{Type: "subscribe", ChannelID: channelID}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("gateway subscribe %d: %w", channelID, err)
	}
	s.l.Info("gateway stream connected", logger.Int64("channel_id", channelID))
	return conn, nil
}

func (s *Stream) pingLoop(ctx context.Context, lc *liveConn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lc.close()
			return
		case <-ticker.C:
			_ = lc.ping()
		}
	}
}

func (s *Stream) readLoop(ctx context.Context, lc *liveConn, conn *websocket.Conn, channelID int64, msgs chan<- drepo.RawMessage, errs chan<- error) {
	defer close(msgs)
	defer close(errs)
	defer lc.close()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// one reconnect attempt before giving up
			time.Sleep(s.reconnectDelay)
			next, derr := s.dial(ctx, channelID)
			if derr != nil {
				errs <- fmt.Errorf("gateway read: %w", err)
				return
			}
			if old := lc.swap(next); old != nil {
				_ = old.Close()
			}
			conn = next
			continue
		}

		var u updateFrame
		if err := json.Unmarshal(b, &u); err != nil {
			// ignore non-update frames
			continue
		}
		if u.Text == "" {
			continue
		}

		sentAt := time.Now()
		if t, err := time.Parse(time.RFC3339, u.SentAt); err == nil {
			sentAt = t
		}

		select {
		case msgs <- drepo.RawMessage{ChannelID: u.ChannelID, Text: u.Text, SentAt: sentAt}:
		case <-ctx.Done():
			return
		}
	}
}

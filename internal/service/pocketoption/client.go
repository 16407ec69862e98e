package pocketoption

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"SigRelay/internal/domain/models"
	"SigRelay/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client implements a BalanceProvider against the broker's socket.io
// endpoint. Every QueryBalance call opens its own connection, performs the
// engine.io handshake, authenticates with the account's SSID frame and
// waits for the first balance event.
type Client struct {
	websocketURL string
	origin       string
	dialTimeout  time.Duration
	readTimeout  time.Duration
	l            *logger.Logger
}

// NewClient creates a broker balance client.
func NewClient(websocketURL, origin string, dialTimeout, readTimeout time.Duration, l *logger.Logger) *Client {
	return &Client{
		websocketURL: websocketURL,
		origin:       origin,
		dialTimeout:  dialTimeout,
		readTimeout:  readTimeout,
		l:            l,
	}
}

type balanceEvent struct {
	Balance float64 `json:"balance"`
}

// QueryBalance fetches the current balance for one credential. Failures
// come back as *models.BalanceUnavailableError.
func (c *Client) QueryBalance(ctx context.Context, credential string) (float64, error) {
	ssid, err := PreprocessSSID(credential)
	if err != nil {
		return 0, &models.BalanceUnavailableError{Reason: models.ReasonInvalidCredential, Err: err}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.dialTimeout}
	header := http.Header{}
	if c.origin != "" {
		header.Set("Origin", c.origin)
	}
	conn, _, err := dialer.DialContext(ctx, c.websocketURL, header)
	if err != nil {
		return 0, classify(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	bal, err := c.exchange(conn, ssid)
	if err != nil {
		return 0, classify(err)
	}
	return bal, nil
}

var errAuthRejected = errors.New("broker rejected session")

// exchange runs the socket.io conversation until a balance arrives.
func (c *Client) exchange(conn *websocket.Conn, ssid string) (float64, error) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("broker read: %w", err)
		}
		frame := string(b)

		switch {
		case strings.HasPrefix(frame, "0"):
			// engine.io open, upgrade to socket.io namespace
			if err := conn.WriteMessage(websocket.TextMessage, []byte("40")); err != nil {
				return 0, fmt.Errorf("broker connect: %w", err)
			}
		case strings.HasPrefix(frame, "40"):
			// namespace joined, authenticate
			if err := conn.WriteMessage(websocket.TextMessage, []byte(ssid)); err != nil {
				return 0, fmt.Errorf("broker auth write: %w", err)
			}
		case frame == "2":
			// engine.io ping
			if err := conn.WriteMessage(websocket.TextMessage, []byte("3")); err != nil {
				return 0, fmt.Errorf("broker pong: %w", err)
			}
		case strings.HasPrefix(frame, `42["autherror"`):
			return 0, errAuthRejected
		case strings.HasPrefix(frame, `42["successupdateBalance"`),
			strings.HasPrefix(frame, `42["updateBalance"`):
			return parseBalance(frame)
		}
	}
}

func parseBalance(frame string) (float64, error) {
	i := strings.Index(frame, ",")
	j := strings.LastIndex(frame, "]")
	if i < 0 || j <= i {
		return 0, fmt.Errorf("malformed balance frame")
	}
	var ev balanceEvent
	if err := json.Unmarshal([]byte(frame[i+1:j]), &ev); err != nil {
		return 0, fmt.Errorf("balance payload: %w", err)
	}
	return ev.Balance, nil
}

func classify(err error) error {
	var be *models.BalanceUnavailableError
	if errors.As(err, &be) {
		return err
	}
	switch {
	case errors.Is(err, errAuthRejected):
		return &models.BalanceUnavailableError{Reason: models.ReasonInvalidCredential, Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &models.BalanceUnavailableError{Reason: models.ReasonTimeout, Err: err}
	default:
		return &models.BalanceUnavailableError{Reason: models.ReasonTransient, Err: err}
	}
}

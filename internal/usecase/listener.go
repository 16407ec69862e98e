package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	mid "SigRelay/internal/middleware"
	"SigRelay/internal/service/parser"
	applogger "SigRelay/pkg/logger"
)

// ListenerConfig sizes the listener.
type ListenerConfig struct {
	BufferCapacity int // ring buffer of recent messages, default 200
}

// ChannelListener owns the single channel subscription. Listen tears down
// any prior subscription before establishing the new one, so there is
// always at most one active. Every inbound message lands in the ring
// buffer, parsed or not; parsed signals additionally flow into the relay
// pipeline.
type ChannelListener struct {
	auth    *AuthSession
	stream  drepo.MessageStream
	pipe    *mid.MessagePipeline
	store   drepo.AccountStore
	metrics drepo.Metrics
	l       *applogger.Logger

	ring *signalRing

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	channelID int64
	active    bool
}

func NewChannelListener(auth *AuthSession, stream drepo.MessageStream, pipe *mid.MessagePipeline, store drepo.AccountStore, metrics drepo.Metrics, l *applogger.Logger, cfg ListenerConfig) *ChannelListener {
	return &ChannelListener{
		auth:    auth,
		stream:  stream,
		pipe:    pipe,
		store:   store,
		metrics: metrics,
		l:       l,
		ring:    newSignalRing(cfg.BufferCapacity),
	}
}

// Listen subscribes to channelID. Requires an authenticated session.
// Idempotent with respect to the active subscription: the old one is torn
// down first, and a subscribe failure leaves none active.
func (c *ChannelListener) Listen(ctx context.Context, channelID int64) error {
	if !c.auth.Authenticated() {
		return models.ErrNotAuthenticated
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()

	// subscription outlives the HTTP request that started it
	subCtx, cancel := context.WithCancel(context.Background())
	msgCh, errCh, err := c.stream.Subscribe(subCtx, channelID)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe channel %d: %w", channelID, err)
	}

	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.channelID = channelID
	c.active = true
	go c.consume(subCtx, channelID, msgCh, errCh, done)

	if c.store != nil {
		if err := c.store.SaveChannelID(ctx, channelID); err != nil {
			c.l.Warn("listener: channel id not persisted", applogger.Error(err))
		}
	}
	c.l.Info("listener: subscribed", applogger.Int64("channel_id", channelID))
	return nil
}

// Stop tears down the active subscription. No-op when none is active.
func (c *ChannelListener) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// teardownLocked cancels the consumer and waits for it to drain so no
// orphaned receiver keeps appending behind a new subscription.
func (c *ChannelListener) teardownLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.active = false
	c.l.Info("listener: unsubscribed", applogger.Int64("channel_id", c.channelID))
	c.channelID = 0
}

func (c *ChannelListener) consume(ctx context.Context, channelID int64, msgCh <-chan drepo.RawMessage, errCh <-chan error, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				return
			}
			if err != nil {
				c.metrics.RecordError("stream")
				c.l.Error("listener: stream error", applogger.Int64("channel_id", channelID), applogger.Error(err))
			}
		case m, ok := <-msgCh:
			if !ok {
				// stream died on its own; flag it without blocking a
				// teardown that may already be waiting on done
				go c.markInactive(channelID)
				return
			}
			c.handle(ctx, m)
		}
	}
}

func (c *ChannelListener) handle(ctx context.Context, m drepo.RawMessage) {
	sig := parser.Parse(m.Text)
	sig.ChannelID = m.ChannelID
	sig.ReceivedAt = m.SentAt
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now()
	}

	// diagnostic view first: unparsed chatter is retained too
	c.ring.append(sig)
	c.metrics.RecordMessage(m.ChannelID, sig.Parsed())

	if c.pipe != nil && sig.Parsed() {
		if err := c.pipe.Process(ctx, sig); err != nil {
			c.l.Warn("listener: relay pipeline rejected signal", applogger.Error(err))
		}
	}
}

// markInactive flips the active flag when the stream closes underneath us,
// without fighting a concurrent Listen/Stop teardown.
func (c *ChannelListener) markInactive(channelID int64) {
	c.mu.Lock()
	if c.channelID == channelID {
		c.active = false
	}
	c.mu.Unlock()
}

// Active returns the live subscription, if any.
func (c *ChannelListener) Active() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID, c.active
}

// Recent returns up to limit ring-buffer entries, most recent first.
func (c *ChannelListener) Recent(limit int) []models.Signal {
	return c.ring.recent(limit)
}

// SavedChannelID returns the last channel id persisted by Listen.
func (c *ChannelListener) SavedChannelID(ctx context.Context) int64 {
	if c.store == nil {
		return 0
	}
	id, err := c.store.LoadChannelID(ctx)
	if err != nil {
		return 0
	}
	return id
}

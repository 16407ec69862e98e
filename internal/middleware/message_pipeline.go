package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
)

// Relayer is the minimal downstream interface the pipeline needs.
type Relayer interface {
	Relay(ctx context.Context, s models.Signal) error
}

// MessagePipeline sits between the channel listener and the relay sinks.
// It validates, throttles per channel, and buffers signals while a sink is
// briefly unavailable so a Kafka or ClickHouse hiccup never stalls the
// listener.
type MessagePipeline struct {
	relay   Relayer
	metrics drepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan models.Signal
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// per-channel last accepted time
	lastSeen map[int64]time.Time
}

type PipelineOption func(*MessagePipeline)

// WithMaxRPS sets the max signals per second per channel.
func WithMaxRPS(n int) PipelineOption {
	return func(p *MessagePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used when a sink is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *MessagePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewMessagePipeline creates a new pipeline.
func NewMessagePipeline(relay Relayer, metrics drepo.Metrics, opts ...PipelineOption) *MessagePipeline {
	p := &MessagePipeline{
		relay:    relay,
		metrics:  metrics,
		maxRPS:   10,
		bufSize:  500,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[int64]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.Signal, p.bufSize)
	return p
}

// Start launches background flushing of buffered signals.
func (p *MessagePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case s := <-p.bufCh:
				if err := p.relay.Relay(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *MessagePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards one signal downstream,
// buffering on sink errors.
func (p *MessagePipeline) Process(ctx context.Context, s models.Signal) error {
	now := time.Now()
	if err := validateSignal(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.ChannelID, now) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.relay.Relay(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_relay")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func validateSignal(s models.Signal) error {
	if s.Raw == "" {
		return fmt.Errorf("raw text empty")
	}
	if s.ReceivedAt.IsZero() {
		return fmt.Errorf("received_at unset")
	}
	return nil
}

func (p *MessagePipeline) allow(channelID int64, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[channelID]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[channelID] = now
	return true
}

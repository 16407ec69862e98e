package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
)

type captureRelay struct {
	mu  sync.Mutex
	got []models.Signal
	err error
}

func (r *captureRelay) Relay(_ context.Context, s models.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, s)
	return nil
}

func (r *captureRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

type nopMetrics struct{}

func (nopMetrics) RecordMessage(int64, bool)          {}
func (nopMetrics) RecordAuthTransition(string)        {}
func (nopMetrics) RecordBalanceFetch(string, float64) {}
func (nopMetrics) RecordError(string)                 {}

func validSignal(channel int64) models.Signal {
	return models.Signal{ReceivedAt: time.Now(), ChannelID: channel, Raw: "EURUSD CALL 5m"}
}

func TestProcessForwardsValidSignal(t *testing.T) {
	relay := &captureRelay{}
	p := NewMessagePipeline(relay, nopMetrics{})

	if err := p.Process(context.Background(), validSignal(1)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if relay.count() != 1 {
		t.Fatalf("relayed = %d", relay.count())
	}
}

func TestProcessRejectsInvalid(t *testing.T) {
	relay := &captureRelay{}
	p := NewMessagePipeline(relay, nopMetrics{})

	if err := p.Process(context.Background(), models.Signal{ReceivedAt: time.Now()}); err == nil {
		t.Fatalf("empty raw accepted")
	}
	if err := p.Process(context.Background(), models.Signal{Raw: "x"}); err == nil {
		t.Fatalf("zero received_at accepted")
	}
	if relay.count() != 0 {
		t.Fatalf("invalid signal reached relay")
	}
}

func TestProcessThrottlesPerChannel(t *testing.T) {
	relay := &captureRelay{}
	p := NewMessagePipeline(relay, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	p.Process(ctx, validSignal(1))
	p.Process(ctx, validSignal(1)) // throttled, not an error
	p.Process(ctx, validSignal(2)) // different channel passes

	if relay.count() != 2 {
		t.Fatalf("relayed = %d, want 2", relay.count())
	}
}

func TestProcessBuffersOnSinkFailure(t *testing.T) {
	relay := &captureRelay{err: errors.New("sink down")}
	p := NewMessagePipeline(relay, nopMetrics{}, WithBufferSize(8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Process(ctx, validSignal(1)); err == nil {
		t.Fatalf("expected downstream error")
	}

	// sink recovers, the flush loop drains the buffered signal
	relay.mu.Lock()
	relay.err = nil
	relay.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for relay.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered signal never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
)

type fakePublisher struct {
	mu     sync.Mutex
	sent   []models.Signal
	err    error
	closed bool
}

func (p *fakePublisher) Publish(_ context.Context, s models.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, s)
	return nil
}

func (p *fakePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeArchive struct {
	mu       sync.Mutex
	appended []models.Signal
	err      error
}

func (a *fakeArchive) Append(_ context.Context, s models.Signal) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.appended = append(a.appended, s)
	return nil
}

func (a *fakeArchive) Recent(_ context.Context, limit int) ([]models.Signal, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if limit > len(a.appended) {
		limit = len(a.appended)
	}
	out := make([]models.Signal, 0, limit)
	for i := len(a.appended) - 1; i >= len(a.appended)-limit; i-- {
		out = append(out, a.appended[i])
	}
	return out, nil
}

func (a *fakeArchive) Close() error { return nil }

func testSignal(raw string) models.Signal {
	return models.Signal{
		ReceivedAt: time.Now(),
		ChannelID:  100,
		Asset:      "EURUSD",
		Direction:  models.DirectionCall,
		Raw:        raw,
	}
}

func TestRelayFansOutToBothSinks(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	r := NewSignalRelay(pub, arch, &fakeMetrics{}, testLogger(t))

	if err := r.Relay(context.Background(), testSignal("EURUSD CALL 5m")); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if len(pub.sent) != 1 || len(arch.appended) != 1 {
		t.Fatalf("sent=%d appended=%d", len(pub.sent), len(arch.appended))
	}
}

func TestRelayFailingSinkDoesNotStopOther(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	arch := &fakeArchive{}
	r := NewSignalRelay(pub, arch, &fakeMetrics{}, testLogger(t))

	err := r.Relay(context.Background(), testSignal("EURUSD CALL 5m"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(arch.appended) != 1 {
		t.Fatalf("archive skipped on publisher failure")
	}
}

func TestRelayHistoryMostRecentFirst(t *testing.T) {
	arch := &fakeArchive{}
	r := NewSignalRelay(nil, arch, &fakeMetrics{}, testLogger(t))
	ctx := context.Background()

	r.Relay(ctx, testSignal("first"))
	r.Relay(ctx, testSignal("second"))
	r.Relay(ctx, testSignal("third"))

	got, err := r.History(ctx, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 2 || got[0].Raw != "third" || got[1].Raw != "second" {
		t.Fatalf("history = %+v", got)
	}
}

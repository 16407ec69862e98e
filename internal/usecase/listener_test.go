package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
)

func newTestListener(t *testing.T, stream drepo.MessageStream, capacity int) (*ChannelListener, *fakeMetrics) {
	t.Helper()
	m := &fakeMetrics{}
	auth := authenticatedSession(t, &fakeAuthProvider{})
	c := NewChannelListener(auth, stream, nil, nil, m, testLogger(t), ListenerConfig{BufferCapacity: capacity})
	t.Cleanup(c.Stop)
	return c, m
}

func TestListenRequiresAuth(t *testing.T) {
	stream := newFakeStream()
	auth := NewAuthSession(&fakeAuthProvider{}, &fakeMetrics{}, testLogger(t), AuthConfig{})
	c := NewChannelListener(auth, stream, nil, nil, &fakeMetrics{}, testLogger(t), ListenerConfig{})

	err := c.Listen(context.Background(), 42)
	if !errors.Is(err, models.ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
	if len(stream.subscriptions()) != 0 {
		t.Fatalf("subscribed without auth")
	}
}

func TestListenSwitchesChannel(t *testing.T) {
	stream := newFakeStream()
	c, _ := newTestListener(t, stream, 10)
	ctx := context.Background()

	if err := c.Listen(ctx, 100); err != nil {
		t.Fatalf("listen 100: %v", err)
	}
	if err := c.Listen(ctx, 200); err != nil {
		t.Fatalf("listen 200: %v", err)
	}

	id, active := c.Active()
	if !active || id != 200 {
		t.Fatalf("active = (%d, %v), want (200, true)", id, active)
	}

	subs := stream.subscriptions()
	if len(subs) != 2 || subs[0] != 100 || subs[1] != 200 {
		t.Fatalf("subscriptions = %v", subs)
	}

	// the first subscription's context must be dead
	select {
	case <-stream.contexts[0].Done():
	default:
		t.Fatalf("first subscription still live")
	}
}

func TestStopTearsDown(t *testing.T) {
	stream := newFakeStream()
	c, _ := newTestListener(t, stream, 10)

	if err := c.Listen(context.Background(), 100); err != nil {
		t.Fatalf("listen: %v", err)
	}
	c.Stop()

	if _, active := c.Active(); active {
		t.Fatalf("still active after stop")
	}
	// Stop again is a no-op
	c.Stop()
}

func TestSubscribeFailureLeavesInactive(t *testing.T) {
	stream := newFakeStream()
	stream.subErr = errors.New("gateway refused")
	c, _ := newTestListener(t, stream, 10)

	if err := c.Listen(context.Background(), 100); err == nil {
		t.Fatalf("expected error")
	}
	if _, active := c.Active(); active {
		t.Fatalf("active after failed subscribe")
	}
}

func TestMessagesLandInRing(t *testing.T) {
	stream := newFakeStream()
	c, m := newTestListener(t, stream, 10)

	if err := c.Listen(context.Background(), 100); err != nil {
		t.Fatalf("listen: %v", err)
	}

	stream.msgs <- drepo.RawMessage{ChannelID: 100, Text: "EURUSD CALL 5m", SentAt: time.Now()}
	stream.msgs <- drepo.RawMessage{ChannelID: 100, Text: "good morning traders", SentAt: time.Now()}

	waitFor(t, time.Second, func() bool { return len(c.Recent(10)) == 2 })

	recent := c.Recent(10)
	// most recent first, unparsed chatter retained
	if recent[0].Raw != "good morning traders" || recent[0].Parsed() {
		t.Fatalf("recent[0] = %+v", recent[0])
	}
	if recent[1].Asset != "EURUSD" || recent[1].Direction != models.DirectionCall {
		t.Fatalf("recent[1] = %+v", recent[1])
	}

	m.mu.Lock()
	n := m.messages
	m.mu.Unlock()
	if n != 2 {
		t.Fatalf("messages recorded = %d", n)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	stream := newFakeStream()
	c, _ := newTestListener(t, stream, 5)

	if err := c.Listen(context.Background(), 100); err != nil {
		t.Fatalf("listen: %v", err)
	}

	for i := 0; i < 8; i++ {
		stream.msgs <- drepo.RawMessage{ChannelID: 100, Text: fmt.Sprintf("note %d", i), SentAt: time.Now()}
	}

	waitFor(t, time.Second, func() bool {
		r := c.Recent(10)
		return len(r) == 5 && r[0].Raw == "note 7"
	})

	recent := c.Recent(10)
	if recent[4].Raw != "note 3" {
		t.Fatalf("oldest retained = %q, want note 3", recent[4].Raw)
	}
}

func TestStreamCloseMarksInactive(t *testing.T) {
	stream := newFakeStream()
	c, _ := newTestListener(t, stream, 10)

	if err := c.Listen(context.Background(), 100); err != nil {
		t.Fatalf("listen: %v", err)
	}
	close(stream.msgs)

	waitFor(t, time.Second, func() bool {
		_, active := c.Active()
		return !active
	})
}

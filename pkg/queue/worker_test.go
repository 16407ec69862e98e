package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SigRelay/pkg/logger"
)

func testPool(t *testing.T, cfg *PoolConfig) *Pool {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewPool(l, cfg)
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := testPool(t, &PoolConfig{Workers: 2, QueueSize: 8, StopWait: time.Second})
	p.Start()

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		err := p.Submit(Task{Name: "count", Run: func(context.Context) { ran.Add(1) }})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	p.Stop()

	if got := ran.Load(); got != 5 {
		t.Fatalf("ran %d tasks, want 5", got)
	}
}

func TestSubmitAfterStopReturnsErrStopped(t *testing.T) {
	p := testPool(t, &PoolConfig{Workers: 1, QueueSize: 1, StopWait: time.Second})
	p.Start()
	p.Stop()

	err := p.Submit(Task{Name: "late", Run: func(context.Context) {}})
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
}

func TestSubmitFullBuffer(t *testing.T) {
	p := testPool(t, &PoolConfig{Workers: 1, QueueSize: 1, StopWait: time.Second})
	// not started: nothing drains the buffer
	if err := p.Submit(Task{Name: "a", Run: func(context.Context) {}}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	err := p.Submit(Task{Name: "b", Run: func(context.Context) {}})
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("got %v, want ErrQueueFull", err)
	}
}

func TestSubmitDuringStopDoesNotPanic(t *testing.T) {
	for i := 0; i < 50; i++ {
		p := testPool(t, &PoolConfig{Workers: 2, QueueSize: 4, StopWait: time.Second})
		p.Start()

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					err := p.Submit(Task{Name: "churn", Run: func(context.Context) {}})
					if err != nil && !errors.Is(err, ErrQueueFull) && !errors.Is(err, ErrStopped) {
						t.Errorf("submit: %v", err)
						return
					}
				}
			}()
		}
		p.Stop()
		wg.Wait()
	}
}

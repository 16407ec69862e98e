package queue

import (
	"context"
	"sync"
	"time"

	"SigRelay/pkg/logger"
)

// Task is one unit of work. The pool passes it a context that is cancelled
// when the pool stops.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Pool is a bounded in-memory worker pool: a fixed number of workers drain
// a fixed-size pending buffer. Submit never blocks; when the buffer is
// full it fails with ErrQueueFull so callers keep their own latency
// bounds.
type Pool struct {
	logger *logger.Logger
	config *PoolConfig

	tasks  chan Task
	wg     sync.WaitGroup
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	started bool
	stopped bool
}

// NewPool creates a worker pool. Call Start before Submit.
func NewPool(lgr *logger.Logger, config *PoolConfig) *Pool {
	if config == nil {
		config = &PoolConfig{}
	}
	config.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger: lgr,
		config: config,
		tasks:  make(chan Task, config.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. Idempotent.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("queue: pool started", logger.Int("workers", p.config.Workers), logger.Int("queue_size", p.config.QueueSize))
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case t, ok := <-p.tasks:
			if !ok {
				return
			}
			p.run(t)
		}
	}
}

func (p *Pool) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("queue: task panic", logger.String("task", t.Name), logger.Any("panic", r))
		}
	}()
	t.Run(p.ctx)
}

// Submit enqueues a task. Fails fast when the buffer is full or the pool
// has stopped.
func (p *Pool) Submit(t Task) error {
	// the send happens under the same lock Stop takes before closing
	// tasks, so Submit can never hit a closed channel
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- t:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop drains in-flight tasks, bounded by StopWait, then cancels whatever
// is left.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(p.config.StopWait):
		p.cancel()
		<-done
	}
	p.cancel()
	p.logger.Info("queue: pool stopped")
}

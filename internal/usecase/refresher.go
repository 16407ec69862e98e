package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	applogger "SigRelay/pkg/logger"
)

// BalanceRefresher sweeps the registry on a timer and refreshes every
// account's cached balance through the fetcher. Accounts already being
// fetched are simply skipped; the next sweep picks them up.
type BalanceRefresher struct {
	registry *AccountRegistry
	fetcher  *BalanceFetcher
	l        *applogger.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBalanceRefresher(registry *AccountRegistry, fetcher *BalanceFetcher, l *applogger.Logger, interval time.Duration) *BalanceRefresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &BalanceRefresher{
		registry: registry,
		fetcher:  fetcher,
		l:        l,
		interval: interval,
	}
}

// Start launches the sweep loop. No-op when already running.
func (r *BalanceRefresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	go r.loop(ctx, done)
	r.l.Info("refresher: started", applogger.Duration("interval", r.interval))
}

// Stop halts the loop and waits for the running sweep to finish.
func (r *BalanceRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	r.l.Info("refresher: stopped")
}

// Running reports whether the sweep loop is active.
func (r *BalanceRefresher) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *BalanceRefresher) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *BalanceRefresher) sweep(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range r.registry.Names() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := r.fetcher.Fetch(ctx, name)
			switch {
			case err == nil:
			case errors.Is(err, models.ErrFetchInProgress):
				// a fetch-now beat us; fine
			case errors.Is(err, models.ErrNotFound):
				// deleted mid-sweep; fine
			default:
				r.l.Warn("refresher: fetch failed", applogger.String("account", name), applogger.Error(err))
			}
		}(name)
	}
	wg.Wait()
}

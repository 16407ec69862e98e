package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
	"SigRelay/pkg/queue"
)

// BalanceConfig bounds a single fetch.
type BalanceConfig struct {
	FetchTimeout time.Duration // per-fetch deadline, default 30s
}

// BalanceFetcher queries broker balances through a bounded worker pool.
// Distinct accounts fetch in parallel up to the pool width; a second fetch
// for an account already in flight fails fast with ErrFetchInProgress.
// Provider success updates the registry's balance cache; any failure
// leaves the cache untouched.
type BalanceFetcher struct {
	registry *AccountRegistry
	provider drepo.BalanceProvider
	pool     *queue.Pool
	metrics  drepo.Metrics
	l        *applogger.Logger
	cfg      BalanceConfig

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewBalanceFetcher(registry *AccountRegistry, provider drepo.BalanceProvider, pool *queue.Pool, metrics drepo.Metrics, l *applogger.Logger, cfg BalanceConfig) *BalanceFetcher {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &BalanceFetcher{
		registry: registry,
		provider: provider,
		pool:     pool,
		metrics:  metrics,
		l:        l,
		cfg:      cfg,
		inflight: make(map[string]struct{}),
	}
}

type fetchResult struct {
	balance float64
	err     error
}

// Fetch queries the balance for name and returns the fresh value. The
// cache write happens inside the worker, so an abandoned caller does not
// lose the result.
func (f *BalanceFetcher) Fetch(ctx context.Context, name string) (float64, error) {
	account, err := f.registry.Get(name)
	if err != nil {
		return 0, err
	}

	if !f.markInflight(name) {
		return 0, models.ErrFetchInProgress
	}

	resCh := make(chan fetchResult, 1)
	task := queue.Task{
		Name: "balance:" + name,
		Run: func(poolCtx context.Context) {
			defer f.clearInflight(name)
			resCh <- f.query(poolCtx, name, account.Credential)
		},
	}
	if err := f.pool.Submit(task); err != nil {
		f.clearInflight(name)
		return 0, &models.BalanceUnavailableError{Reason: models.ReasonTransient, Err: err}
	}

	select {
	case res := <-resCh:
		return res.balance, res.err
	case <-ctx.Done():
		// worker keeps going and will still update the cache; the caller
		// just stops waiting
		return 0, &models.BalanceUnavailableError{Reason: models.ReasonTimeout, Err: ctx.Err()}
	}
}

// query runs the provider call under the fetch deadline and writes the
// cache on success.
func (f *BalanceFetcher) query(poolCtx context.Context, name, credential string) fetchResult {
	start := time.Now()
	fetchCtx, cancel := context.WithTimeout(poolCtx, f.cfg.FetchTimeout)
	defer cancel()

	balance, err := f.provider.QueryBalance(fetchCtx, credential)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		buErr := classify(err, fetchCtx)
		f.metrics.RecordBalanceFetch(string(buErr.Reason), elapsed)
		f.l.Warn("balance: fetch failed",
			applogger.String("account", name),
			applogger.String("reason", string(buErr.Reason)),
			applogger.Error(err))
		return fetchResult{err: buErr}
	}

	if err := f.registry.SetBalance(poolCtx, name, balance, time.Now()); err != nil {
		// account deleted while the fetch was in flight
		f.metrics.RecordBalanceFetch("gone", elapsed)
		return fetchResult{err: err}
	}
	f.metrics.RecordBalanceFetch("ok", elapsed)
	return fetchResult{balance: balance}
}

// classify normalizes provider failures into BalanceUnavailableError.
func classify(err error, fetchCtx context.Context) *models.BalanceUnavailableError {
	var bu *models.BalanceUnavailableError
	if errors.As(err, &bu) {
		return bu
	}
	if errors.Is(err, context.DeadlineExceeded) || fetchCtx.Err() != nil {
		return &models.BalanceUnavailableError{Reason: models.ReasonTimeout, Err: err}
	}
	return &models.BalanceUnavailableError{Reason: models.ReasonTransient, Err: err}
}

func (f *BalanceFetcher) markInflight(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.inflight[name]; busy {
		return false
	}
	f.inflight[name] = struct{}{}
	return true
}

func (f *BalanceFetcher) clearInflight(name string) {
	f.mu.Lock()
	delete(f.inflight, name)
	f.mu.Unlock()
}

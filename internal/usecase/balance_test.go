package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
	"SigRelay/pkg/queue"
)

func newTestFetcher(t *testing.T, provider *fakeBalanceProvider, m *fakeMetrics) (*BalanceFetcher, *AccountRegistry) {
	t.Helper()
	l := testLogger(t)
	pool := queue.NewPool(l, &queue.PoolConfig{Workers: 4, QueueSize: 16})
	pool.Start()
	t.Cleanup(pool.Stop)

	registry := NewAccountRegistry(nil, l)
	fetcher := NewBalanceFetcher(registry, provider, pool, m, l, BalanceConfig{FetchTimeout: time.Second})
	return fetcher, registry
}

func TestFetchSuccessUpdatesCache(t *testing.T) {
	provider := &fakeBalanceProvider{balance: 250.5}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)
	ctx := context.Background()

	if _, err := registry.Add(ctx, "alpha", "ssid", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}

	balance, err := fetcher.Fetch(ctx, "alpha")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if balance != 250.5 {
		t.Fatalf("balance = %v", balance)
	}

	got, _ := registry.Get("alpha")
	if got.LastBalance == nil || *got.LastBalance != 250.5 {
		t.Fatalf("cache = %v", got.LastBalance)
	}
	if got.LastBalanceAt == nil {
		t.Fatalf("cache timestamp missing")
	}
}

func TestFetchFailureLeavesCache(t *testing.T) {
	provider := &fakeBalanceProvider{balance: 100}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)
	ctx := context.Background()

	registry.Add(ctx, "alpha", "ssid", pctSizing(t, 5))
	if _, err := fetcher.Fetch(ctx, "alpha"); err != nil {
		t.Fatalf("warmup fetch: %v", err)
	}

	provider.mu.Lock()
	provider.err = errors.New("socket reset")
	provider.mu.Unlock()

	_, err := fetcher.Fetch(ctx, "alpha")
	var be *models.BalanceUnavailableError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BalanceUnavailableError", err)
	}
	if be.Reason != models.ReasonTransient {
		t.Fatalf("reason = %s, want transient", be.Reason)
	}

	got, _ := registry.Get("alpha")
	if got.LastBalance == nil || *got.LastBalance != 100 {
		t.Fatalf("stale cache lost: %v", got.LastBalance)
	}
}

func TestFetchPreservesProviderReason(t *testing.T) {
	provider := &fakeBalanceProvider{
		err: &models.BalanceUnavailableError{Reason: models.ReasonInvalidCredential, Err: errors.New("autherror")},
	}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)
	ctx := context.Background()

	registry.Add(ctx, "alpha", "ssid", pctSizing(t, 5))

	_, err := fetcher.Fetch(ctx, "alpha")
	var be *models.BalanceUnavailableError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v", err)
	}
	if be.Reason != models.ReasonInvalidCredential {
		t.Fatalf("reason = %s, want invalid_credential", be.Reason)
	}
}

func TestFetchUnknownAccount(t *testing.T) {
	fetcher, _ := newTestFetcher(t, &fakeBalanceProvider{}, &fakeMetrics{})
	if _, err := fetcher.Fetch(context.Background(), "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestFetchInProgressFailsFast(t *testing.T) {
	provider := &fakeBalanceProvider{balance: 10, block: make(chan struct{})}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)
	ctx := context.Background()

	registry.Add(ctx, "alpha", "ssid", pctSizing(t, 5))

	first := make(chan error, 1)
	go func() {
		_, err := fetcher.Fetch(ctx, "alpha")
		first <- err
	}()

	// wait until the first fetch is actually inside the provider
	waitFor(t, time.Second, func() bool { return provider.callCount() == 1 })

	if _, err := fetcher.Fetch(ctx, "alpha"); !errors.Is(err, models.ErrFetchInProgress) {
		t.Fatalf("second fetch err = %v, want ErrFetchInProgress", err)
	}

	close(provider.block)
	if err := <-first; err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// once the first lands the account is fetchable again
	provider.mu.Lock()
	provider.block = nil
	provider.mu.Unlock()
	if _, err := fetcher.Fetch(ctx, "alpha"); err != nil {
		t.Fatalf("third fetch: %v", err)
	}
}

func TestFetchDistinctAccountsRunInParallel(t *testing.T) {
	provider := &fakeBalanceProvider{balance: 10, delay: 100 * time.Millisecond}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)
	ctx := context.Background()

	registry.Add(ctx, "alpha", "s1", pctSizing(t, 5))
	registry.Add(ctx, "bravo", "s2", pctSizing(t, 5))

	start := time.Now()
	done := make(chan error, 2)
	for _, name := range []string{"alpha", "bravo"} {
		go func(name string) {
			_, err := fetcher.Fetch(ctx, name)
			done <- err
		}(name)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("fetch: %v", err)
		}
	}

	if elapsed := time.Since(start); elapsed > 180*time.Millisecond {
		t.Fatalf("fetches serialized: took %v", elapsed)
	}
}

func TestFetchAbandonedCallerStillUpdatesCache(t *testing.T) {
	provider := &fakeBalanceProvider{balance: 77, delay: 50 * time.Millisecond}
	m := &fakeMetrics{}
	fetcher, registry := newTestFetcher(t, provider, m)

	registry.Add(context.Background(), "alpha", "ssid", pctSizing(t, 5))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, "alpha")
	var be *models.BalanceUnavailableError
	if !errors.As(err, &be) || be.Reason != models.ReasonTimeout {
		t.Fatalf("err = %v, want timeout", err)
	}

	// the worker finishes on its own schedule and writes the cache
	waitFor(t, time.Second, func() bool {
		got, gerr := registry.Get("alpha")
		return gerr == nil && got.LastBalance != nil && *got.LastBalance == 77
	})
}

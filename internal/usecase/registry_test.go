package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
)

func pctSizing(t *testing.T, pct float64) models.Sizing {
	t.Helper()
	s, err := models.NewPercentageSizing(pct)
	if err != nil {
		t.Fatalf("sizing: %v", err)
	}
	return s
}

func newTestRegistry(t *testing.T) *AccountRegistry {
	t.Helper()
	return NewAccountRegistry(nil, testLogger(t))
}

func TestRenamePersistsFullOrder(t *testing.T) {
	store := newFakeAccountStore()
	r := NewAccountRegistry(store, testLogger(t))
	ctx := context.Background()

	for _, name := range []string{"alpha", "beta", "gamma"} {
		if _, err := r.Add(ctx, name, "ssid-"+name, pctSizing(t, 5)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	if _, err := r.Rename(ctx, "beta", "delta"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	want := []string{"alpha", "delta", "gamma"}
	if len(store.order) != len(want) {
		t.Fatalf("persisted order = %v, want %v", store.order, want)
	}
	for i, name := range want {
		if store.order[i] != name {
			t.Fatalf("persisted order = %v, want %v", store.order, want)
		}
	}
	if _, ok := store.records["beta"]; ok {
		t.Fatalf("old record survives rename")
	}
	if _, ok := store.records["delta"]; !ok {
		t.Fatalf("renamed record missing")
	}
}

func TestDeleteReleasesNameLock(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	r.lockMu.Lock()
	_, ok := r.locks["alpha"]
	r.lockMu.Unlock()
	if ok {
		t.Fatalf("lock entry survives delete")
	}
}

func TestRenameReleasesOldNameLock(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Rename(ctx, "alpha", "beta"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	r.lockMu.Lock()
	_, oldOK := r.locks["alpha"]
	_, newOK := r.locks["beta"]
	r.lockMu.Unlock()
	if oldOK {
		t.Fatalf("old name lock survives rename")
	}
	if !newOK {
		t.Fatalf("new name lock missing")
	}
}

func TestRegistryAddAndGet(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if a.Name != "alpha" || a.Credential != "ssid-1" {
		t.Fatalf("unexpected account %+v", a)
	}
	if a.LastBalance != nil {
		t.Fatalf("new account has balance")
	}

	got, err := r.Get("alpha")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "alpha" {
		t.Fatalf("got %+v", got)
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err := r.Add(ctx, "alpha", "ssid-2", pctSizing(t, 10))
	if !errors.Is(err, models.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}

	// the original is untouched
	got, _ := r.Get("alpha")
	if got.Credential != "ssid-1" {
		t.Fatalf("credential overwritten: %q", got.Credential)
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryUpdatePartial(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}

	fixed, _ := models.NewFixedSizing(25)
	got, err := r.Update(ctx, "alpha", nil, &fixed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Credential != "ssid-1" {
		t.Fatalf("credential changed: %q", got.Credential)
	}
	if got.Sizing.Kind != models.SizingFixedAmount || got.Sizing.Value != 25 {
		t.Fatalf("sizing = %+v", got.Sizing)
	}

	cred := "ssid-2"
	got, err = r.Update(ctx, "alpha", &cred, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Credential != "ssid-2" {
		t.Fatalf("credential = %q", got.Credential)
	}
	if got.Sizing.Value != 25 {
		t.Fatalf("sizing lost on credential update")
	}
}

func TestRegistrySetBalance(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	at := time.Now()
	if err := r.SetBalance(ctx, "alpha", 123.45, at); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	got, _ := r.Get("alpha")
	if got.LastBalance == nil || *got.LastBalance != 123.45 {
		t.Fatalf("balance = %v", got.LastBalance)
	}
	if got.LastBalanceAt == nil || !got.LastBalanceAt.Equal(at) {
		t.Fatalf("balance_at = %v", got.LastBalanceAt)
	}
}

func TestRegistryDelete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.Add(ctx, "alpha", "ssid-1", pctSizing(t, 5)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := r.Delete(ctx, "alpha"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get("alpha"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if err := r.Delete(ctx, "alpha"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}

	// name is reusable after delete
	if _, err := r.Add(ctx, "alpha", "ssid-2", pctSizing(t, 5)); err != nil {
		t.Fatalf("re-add: %v", err)
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"charlie", "alpha", "bravo"} {
		if _, err := r.Add(ctx, name, "s", pctSizing(t, 5)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"charlie", "alpha", "bravo"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestRegistryRenameKeepsPosition(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := r.Add(ctx, name, "s", pctSizing(t, 5)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := r.SetBalance(ctx, "b", 50, time.Now()); err != nil {
		t.Fatalf("set balance: %v", err)
	}

	got, err := r.Rename(ctx, "b", "beta")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "beta" {
		t.Fatalf("name = %q", got.Name)
	}
	if got.LastBalance == nil || *got.LastBalance != 50 {
		t.Fatalf("balance lost in rename")
	}

	names := r.Names()
	want := []string{"a", "beta", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}

	if _, err := r.Get("b"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("old name still resolves")
	}
}

func TestRegistryRenameConflicts(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Add(ctx, "a", "s", pctSizing(t, 5))
	r.Add(ctx, "b", "s", pctSizing(t, 5))

	if _, err := r.Rename(ctx, "a", "b"); !errors.Is(err, models.ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if _, err := r.Rename(ctx, "ghost", "x"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryConcurrentDistinctWriters(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	const n = 8
	for i := 0; i < n; i++ {
		if _, err := r.Add(ctx, fmt.Sprintf("acct-%d", i), "s", pctSizing(t, 5)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("acct-%d", i)
			for j := 0; j < 50; j++ {
				if err := r.SetBalance(ctx, name, float64(j), time.Now()); err != nil {
					t.Errorf("set balance %s: %v", name, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		got, err := r.Get(fmt.Sprintf("acct-%d", i))
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.LastBalance == nil || *got.LastBalance != 49 {
			t.Fatalf("acct-%d balance = %v", i, got.LastBalance)
		}
	}
}

func TestRegistrySnapshotsDoNotAlias(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Add(ctx, "alpha", "s", pctSizing(t, 5))
	r.SetBalance(ctx, "alpha", 10, time.Now())

	snap, _ := r.Get("alpha")
	*snap.LastBalance = 999

	got, _ := r.Get("alpha")
	if *got.LastBalance != 10 {
		t.Fatalf("snapshot mutation leaked into registry")
	}
}

package usecase

import (
	"context"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

// AccountRegistry is the in-memory CRUD store of trading accounts, keyed by
// unique name. Writers to the same name are serialized by a per-name lock
// so balance-cache writes never race explicit edits; writers to distinct
// names do not block each other. List/Get copy under a read lock only.
//
// The registry is authoritative while the process runs; the account store
// is a write-through mirror, replayed at startup.
type AccountRegistry struct {
	store drepo.AccountStore
	l     *applogger.Logger

	mu       sync.RWMutex
	accounts map[string]*models.Account
	order    []string // insertion order for stable listing

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewAccountRegistry(store drepo.AccountStore, l *applogger.Logger) *AccountRegistry {
	return &AccountRegistry{
		store:    store,
		l:        l,
		accounts: make(map[string]*models.Account),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Load seeds the registry from the persistent store. Called once at
// startup, before the registry is shared.
func (r *AccountRegistry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	accounts, err := r.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range accounts {
		if _, ok := r.accounts[a.Name]; ok {
			continue
		}
		r.accounts[a.Name] = a
		r.order = append(r.order, a.Name)
	}
	r.l.Info("registry: loaded", applogger.Int("accounts", len(r.order)))
	return nil
}

// nameLock returns the writer lock for name, creating it on first use.
func (r *AccountRegistry) nameLock(name string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lk, ok := r.locks[name]
	if !ok {
		lk = &sync.Mutex{}
		r.locks[name] = lk
	}
	return lk
}

// releaseNameLock drops the lock entry for a name that no longer exists
// so the lock map does not grow under create/delete churn. A writer still
// blocked on the old mutex will find the account gone.
func (r *AccountRegistry) releaseNameLock(name string) {
	r.lockMu.Lock()
	delete(r.locks, name)
	r.lockMu.Unlock()
}

// Add inserts a new account with an empty balance cache.
func (r *AccountRegistry) Add(ctx context.Context, name, credential string, sizing models.Sizing) (*models.Account, error) {
	lk := r.nameLock(name)
	lk.Lock()
	defer lk.Unlock()

	a := &models.Account{
		Name:       name,
		Credential: credential,
		Sizing:     sizing,
		CreatedAt:  time.Now(),
	}

	r.mu.Lock()
	if _, ok := r.accounts[name]; ok {
		r.mu.Unlock()
		return nil, models.ErrDuplicateName
	}
	r.accounts[name] = a
	r.order = append(r.order, name)
	r.mu.Unlock()

	r.persistPut(ctx, a)
	return a.Clone(), nil
}

// Update overwrites only the supplied fields. The name cannot change here;
// use Rename.
func (r *AccountRegistry) Update(ctx context.Context, name string, credential *string, sizing *models.Sizing) (*models.Account, error) {
	lk := r.nameLock(name)
	lk.Lock()
	defer lk.Unlock()

	return r.mutate(ctx, name, func(a *models.Account) {
		if credential != nil {
			a.Credential = *credential
		}
		if sizing != nil {
			a.Sizing = *sizing
		}
	})
}

// SetBalance writes the balance cache for name. Called by the balance
// fetcher on provider success only.
func (r *AccountRegistry) SetBalance(ctx context.Context, name string, balance float64, at time.Time) error {
	lk := r.nameLock(name)
	lk.Lock()
	defer lk.Unlock()

	_, err := r.mutate(ctx, name, func(a *models.Account) {
		a.LastBalance = &balance
		a.LastBalanceAt = &at
	})
	return err
}

// mutate applies a copy-on-write edit under the caller-held name lock.
func (r *AccountRegistry) mutate(ctx context.Context, name string, apply func(*models.Account)) (*models.Account, error) {
	r.mu.RLock()
	cur, ok := r.accounts[name]
	r.mu.RUnlock()
	if !ok {
		return nil, models.ErrNotFound
	}

	next := cur.Clone()
	apply(next)

	r.mu.Lock()
	r.accounts[name] = next
	r.mu.Unlock()

	r.persistPut(ctx, next)
	return next.Clone(), nil
}

// Delete removes the account and its cached balance.
func (r *AccountRegistry) Delete(ctx context.Context, name string) error {
	lk := r.nameLock(name)
	lk.Lock()
	defer lk.Unlock()

	r.mu.Lock()
	if _, ok := r.accounts[name]; !ok {
		r.mu.Unlock()
		return models.ErrNotFound
	}
	delete(r.accounts, name)
	r.removeFromOrderLocked(name)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, name); err != nil {
			r.l.Warn("registry: delete not persisted", applogger.String("name", name), applogger.Error(err))
		}
	}
	r.releaseNameLock(name)
	return nil
}

// Rename moves an account to a new name atomically, keeping its position
// in the listing. Both name locks are taken in a fixed order so two
// concurrent renames cannot deadlock.
func (r *AccountRegistry) Rename(ctx context.Context, oldName, newName string) (*models.Account, error) {
	if oldName == newName {
		return r.Get(oldName)
	}
	first, second := oldName, newName
	if second < first {
		first, second = second, first
	}
	lk1, lk2 := r.nameLock(first), r.nameLock(second)
	lk1.Lock()
	defer lk1.Unlock()
	lk2.Lock()
	defer lk2.Unlock()

	r.mu.Lock()
	cur, ok := r.accounts[oldName]
	if !ok {
		r.mu.Unlock()
		return nil, models.ErrNotFound
	}
	if _, taken := r.accounts[newName]; taken {
		r.mu.Unlock()
		return nil, models.ErrDuplicateName
	}
	next := cur.Clone()
	next.Name = newName
	delete(r.accounts, oldName)
	r.accounts[newName] = next
	for i, n := range r.order {
		if n == oldName {
			r.order[i] = newName
			break
		}
	}
	// snapshot under the registry lock so a concurrent Add cannot be
	// missing from the persisted order
	orderSnap := make([]string, len(r.order))
	copy(orderSnap, r.order)
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Delete(ctx, oldName); err != nil {
			r.l.Warn("registry: rename delete not persisted", applogger.String("name", oldName), applogger.Error(err))
		}
	}
	r.persistPut(ctx, next)
	if r.store != nil {
		if err := r.store.SaveOrder(ctx, orderSnap); err != nil {
			r.l.Warn("registry: order not persisted", applogger.Error(err))
		}
	}
	r.releaseNameLock(oldName)
	return next.Clone(), nil
}

// Get returns a copy of the account.
func (r *AccountRegistry) Get(name string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[name]
	if !ok {
		return nil, models.ErrNotFound
	}
	return a.Clone(), nil
}

// List returns an insertion-ordered snapshot. Holds only the read lock
// for the duration of the copy.
func (r *AccountRegistry) List() []*models.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Account, 0, len(r.order))
	for _, name := range r.order {
		if a, ok := r.accounts[name]; ok {
			out = append(out, a.Clone())
		}
	}
	return out
}

// Summaries returns the exposable account views, insertion-ordered.
func (r *AccountRegistry) Summaries() []models.Summary {
	accounts := r.List()
	out := make([]models.Summary, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Summary())
	}
	return out
}

// Names returns the current names, insertion-ordered.
func (r *AccountRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *AccountRegistry) removeFromOrderLocked(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

func (r *AccountRegistry) persistPut(ctx context.Context, a *models.Account) {
	if r.store == nil {
		return
	}
	if err := r.store.Put(ctx, a.Clone()); err != nil {
		r.l.Warn("registry: account not persisted", applogger.String("name", a.Name), applogger.Error(err))
	}
}

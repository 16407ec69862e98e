package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

type fakeMetrics struct {
	mu          sync.Mutex
	messages    int
	transitions []string
	fetches     []string
}

func (m *fakeMetrics) RecordMessage(int64, bool) {
	m.mu.Lock()
	m.messages++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAuthTransition(state string) {
	m.mu.Lock()
	m.transitions = append(m.transitions, state)
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBalanceFetch(outcome string, _ float64) {
	m.mu.Lock()
	m.fetches = append(m.fetches, outcome)
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(string) {}

type fakeAuthProvider struct {
	mu            sync.Mutex
	requestCalls  int
	codeCalls     int
	passwordCalls int
	logoutCalls   int
	restoreCalls  int

	requestErr  error
	codeResult  models.CodeResult
	codeErr     error
	passwordErr error
	logoutErr   error
	session     string
	exportErr   error
	restoreErr  error
	block       chan struct{} // when set, SubmitCode waits for it
}

func (p *fakeAuthProvider) RequestCode(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestCalls++
	return p.requestErr
}

func (p *fakeAuthProvider) SubmitCode(ctx context.Context, _ string) (models.CodeResult, error) {
	p.mu.Lock()
	p.codeCalls++
	result, err, block := p.codeResult, p.codeErr, p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	if result == "" {
		return models.CodeAccepted, nil
	}
	return result, nil
}

func (p *fakeAuthProvider) codeCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.codeCalls
}

func (p *fakeAuthProvider) SubmitPassword(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordCalls++
	return p.passwordErr
}

func (p *fakeAuthProvider) Logout(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logoutCalls++
	return p.logoutErr
}

func (p *fakeAuthProvider) ExportSession(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exportErr != nil {
		return "", p.exportErr
	}
	if p.session == "" {
		return "session-blob", nil
	}
	return p.session, nil
}

func (p *fakeAuthProvider) RestoreSession(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restoreCalls++
	return p.restoreErr
}

// fakeAccountStore is an in-memory AccountStore.
type fakeAccountStore struct {
	mu        sync.Mutex
	records   map[string]*models.Account
	order     []string
	channelID int64
	session   string

	sessionErr error
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{records: make(map[string]*models.Account)}
}

func (s *fakeAccountStore) Put(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[a.Name]; !ok {
		s.order = append(s.order, a.Name)
	}
	cp := *a
	s.records[a.Name] = &cp
	return nil
}

func (s *fakeAccountStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *fakeAccountStore) LoadAll(context.Context) ([]*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Account, 0, len(s.order))
	for _, name := range s.order {
		cp := *s.records[name]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeAccountStore) SaveOrder(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = append([]string(nil), names...)
	return nil
}

func (s *fakeAccountStore) SaveChannelID(_ context.Context, channelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = channelID
	return nil
}

func (s *fakeAccountStore) LoadChannelID(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID, nil
}

func (s *fakeAccountStore) SaveSession(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return s.sessionErr
	}
	s.session = session
	return nil
}

func (s *fakeAccountStore) LoadSession(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionErr != nil {
		return "", s.sessionErr
	}
	return s.session, nil
}

func (s *fakeAccountStore) Close() error { return nil }

func (s *fakeAccountStore) savedSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// authenticatedSession drives a session straight to authenticated.
func authenticatedSession(t *testing.T, provider *fakeAuthProvider) *AuthSession {
	t.Helper()
	s := NewAuthSession(provider, &fakeMetrics{}, testLogger(t), AuthConfig{})
	if err := s.Start(context.Background(), "+15551234567"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.VerifyCode(context.Background(), "12345"); err != nil {
		t.Fatalf("verify code: %v", err)
	}
	return s
}

// fakeStream hands out scripted subscriptions and records each Subscribe.
type fakeStream struct {
	mu         sync.Mutex
	subscribed []int64
	contexts   []context.Context
	msgs       chan drepo.RawMessage
	errs       chan error
	subErr     error
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		msgs: make(chan drepo.RawMessage, 64),
		errs: make(chan error, 1),
	}
}

func (s *fakeStream) Subscribe(ctx context.Context, channelID int64) (<-chan drepo.RawMessage, <-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subErr != nil {
		return nil, nil, s.subErr
	}
	s.subscribed = append(s.subscribed, channelID)
	s.contexts = append(s.contexts, ctx)
	return s.msgs, s.errs, nil
}

func (s *fakeStream) subscriptions() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.subscribed))
	copy(out, s.subscribed)
	return out
}

type fakeBalanceProvider struct {
	mu      sync.Mutex
	calls   int
	balance float64
	err     error
	delay   time.Duration
	block   chan struct{} // when set, QueryBalance waits for it
}

func (p *fakeBalanceProvider) QueryBalance(ctx context.Context, _ string) (float64, error) {
	p.mu.Lock()
	p.calls++
	balance, err, delay, block := p.balance, p.err, p.delay, p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (p *fakeBalanceProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", d)
}

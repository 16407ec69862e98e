package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

// AuthConfig bounds the login flow.
type AuthConfig struct {
	MaxAttempts    int           // failed code/password submissions before reset
	PendingTimeout time.Duration // max age of a pending login attempt
}

// AuthSession owns the single process-wide messaging-platform login.
// Transitions are serialized: a second start/verify call arriving while one
// is in flight fails with ErrAuthBusy instead of queuing, so interleaved
// platform calls can never corrupt the session.
type AuthSession struct {
	provider drepo.AuthProvider
	metrics  drepo.Metrics
	l        *applogger.Logger
	cfg      AuthConfig
	// optional; when set, the platform session blob is persisted after a
	// successful login and replayed by Resume
	store drepo.AccountStore

	// opMu serializes transitions (TryLock, never wait). snapMu guards the
	// snapshot fields so Status() stays non-blocking while a provider call
	// is in flight under opMu.
	opMu   sync.Mutex
	snapMu sync.RWMutex

	state        models.AuthState
	phone        string
	pendingSince time.Time
	attempts     int
}

type AuthOption func(*AuthSession)

// WithSessionStore enables session persistence across restarts.
func WithSessionStore(store drepo.AccountStore) AuthOption {
	return func(s *AuthSession) { s.store = store }
}

func NewAuthSession(provider drepo.AuthProvider, metrics drepo.Metrics, l *applogger.Logger, cfg AuthConfig, opts ...AuthOption) *AuthSession {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = 5 * time.Minute
	}
	s := &AuthSession{
		provider: provider,
		metrics:  metrics,
		l:        l,
		cfg:      cfg,
		state:    models.AuthNotAuthenticated,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current snapshot. Never blocks, never mutates.
func (s *AuthSession) Status() models.AuthSnapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return models.AuthSnapshot{
		State:        s.state,
		Phone:        s.phone,
		PendingSince: s.pendingSince,
		LoggedIn:     s.state == models.AuthAuthenticated,
	}
}

// Authenticated reports whether the session is logged in.
func (s *AuthSession) Authenticated() bool {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.state == models.AuthAuthenticated
}

// Start begins a login attempt for phone. Valid only from
// not_authenticated.
func (s *AuthSession) Start(ctx context.Context, phone string) error {
	if !s.opMu.TryLock() {
		return models.ErrAuthBusy
	}
	defer s.opMu.Unlock()

	if st := s.current(); st != models.AuthNotAuthenticated {
		return fmt.Errorf("start from %s: %w", st, models.ErrInvalidState)
	}

	if err := s.provider.RequestCode(ctx, phone); err != nil {
		s.l.Warn("auth: code request failed", applogger.String("phone", phone), applogger.Error(err))
		return err
	}

	s.transition(models.AuthAwaitingCode, func() {
		s.phone = phone
		s.pendingSince = time.Now()
		s.attempts = 0
	})
	s.l.Info("auth: code sent", applogger.String("phone", phone))
	return nil
}

// VerifyCode submits the one-time code. Valid only from awaiting_code. On
// rejection the state is kept so the caller may retry, up to the attempt
// bound.
func (s *AuthSession) VerifyCode(ctx context.Context, code string) error {
	if !s.opMu.TryLock() {
		return models.ErrAuthBusy
	}
	defer s.opMu.Unlock()

	if st := s.current(); st != models.AuthAwaitingCode {
		return fmt.Errorf("verify code from %s: %w", st, models.ErrInvalidState)
	}
	if err := s.expireIfStale(); err != nil {
		return err
	}

	res, err := s.provider.SubmitCode(ctx, code)
	if err != nil {
		return s.recordFailure(err)
	}

	switch res {
	case models.CodeNeedsPassword:
		s.transition(models.AuthAwaitingPassword, func() { s.attempts = 0 })
		s.l.Info("auth: two-factor password required")
	default:
		s.transition(models.AuthAuthenticated, func() { s.attempts = 0 })
		s.l.Info("auth: login successful")
		s.persistSession(ctx)
	}
	return nil
}

// VerifyPassword submits the 2FA password. Valid only from
// awaiting_password.
func (s *AuthSession) VerifyPassword(ctx context.Context, password string) error {
	if !s.opMu.TryLock() {
		return models.ErrAuthBusy
	}
	defer s.opMu.Unlock()

	if st := s.current(); st != models.AuthAwaitingPassword {
		return fmt.Errorf("verify password from %s: %w", st, models.ErrInvalidState)
	}
	if err := s.expireIfStale(); err != nil {
		return err
	}

	if err := s.provider.SubmitPassword(ctx, password); err != nil {
		return s.recordFailure(err)
	}

	s.transition(models.AuthAuthenticated, func() { s.attempts = 0 })
	s.l.Info("auth: login successful (2fa)")
	s.persistSession(ctx)
	return nil
}

// Logout resets the session to not_authenticated. The provider call is
// best-effort; the local reset always happens.
func (s *AuthSession) Logout(ctx context.Context) error {
	if !s.opMu.TryLock() {
		return models.ErrAuthBusy
	}
	defer s.opMu.Unlock()

	if err := s.provider.Logout(ctx); err != nil {
		s.l.Warn("auth: provider logout failed", applogger.Error(err))
	}
	if s.store != nil {
		if err := s.store.SaveSession(ctx, ""); err != nil {
			s.l.Warn("auth: session clear failed", applogger.Error(err))
		}
	}
	s.reset()
	s.l.Info("auth: logged out")
	return nil
}

// Resume replays a persisted platform session, if any. A stale or rejected
// session is discarded, not treated as a startup failure.
func (s *AuthSession) Resume(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if !s.opMu.TryLock() {
		return models.ErrAuthBusy
	}
	defer s.opMu.Unlock()

	if st := s.current(); st != models.AuthNotAuthenticated {
		return fmt.Errorf("resume from %s: %w", st, models.ErrInvalidState)
	}

	session, err := s.store.LoadSession(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == "" {
		return nil
	}

	if err := s.provider.RestoreSession(ctx, session); err != nil {
		s.l.Warn("auth: persisted session rejected", applogger.Error(err))
		if serr := s.store.SaveSession(ctx, ""); serr != nil {
			s.l.Warn("auth: session clear failed", applogger.Error(serr))
		}
		return nil
	}

	s.transition(models.AuthAuthenticated, nil)
	s.l.Info("auth: session resumed")
	return nil
}

// persistSession exports the fresh session and saves it. Best-effort.
// Caller holds opMu.
func (s *AuthSession) persistSession(ctx context.Context) {
	if s.store == nil {
		return
	}
	session, err := s.provider.ExportSession(ctx)
	if err != nil {
		s.l.Warn("auth: session export failed", applogger.Error(err))
		return
	}
	if err := s.store.SaveSession(ctx, session); err != nil {
		s.l.Warn("auth: session save failed", applogger.Error(err))
	}
}

func (s *AuthSession) current() models.AuthState {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.state
}

func (s *AuthSession) transition(to models.AuthState, apply func()) {
	s.snapMu.Lock()
	s.state = to
	if apply != nil {
		apply()
	}
	s.snapMu.Unlock()
	if s.metrics != nil {
		s.metrics.RecordAuthTransition(string(to))
	}
}

func (s *AuthSession) reset() {
	s.transition(models.AuthNotAuthenticated, func() {
		s.phone = ""
		s.pendingSince = time.Time{}
		s.attempts = 0
	})
}

// expireIfStale resets a pending login older than the configured timeout.
// Caller holds opMu.
func (s *AuthSession) expireIfStale() error {
	s.snapMu.RLock()
	since := s.pendingSince
	s.snapMu.RUnlock()
	if since.IsZero() || time.Since(since) <= s.cfg.PendingTimeout {
		return nil
	}
	s.reset()
	s.l.Warn("auth: pending login expired")
	return models.ErrSessionExpired
}

// recordFailure counts a rejected code/password. Exceeding the bound
// resets the whole flow. Caller holds opMu.
func (s *AuthSession) recordFailure(err error) error {
	if !errors.Is(err, models.ErrInvalidCode) && !errors.Is(err, models.ErrInvalidPassword) {
		// transport or platform failure, not a rejection; leave state alone
		return err
	}
	s.snapMu.Lock()
	s.attempts++
	n := s.attempts
	s.snapMu.Unlock()
	if n >= s.cfg.MaxAttempts {
		s.reset()
		s.l.Warn("auth: attempt bound reached, login reset", applogger.Int("attempts", n))
		return fmt.Errorf("%w (attempt bound reached, login reset)", err)
	}
	return err
}

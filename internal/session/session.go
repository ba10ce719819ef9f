// Package session tracks an admin login on the client side: which
// credential to attach to privileged calls and when inactivity ends it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"portfolio.admin/internal/auth"
	"portfolio.admin/internal/client"
)

const (
	DefaultTimeout      = 30 * time.Minute
	DefaultTickInterval = 60 * time.Second
	refreshMargin       = 5 * time.Minute
)

var (
	ErrInvalidSecret   = errors.New("invalid secret")
	ErrLoginInProgress = errors.New("login already in progress")
)

type State int

const (
	Anonymous State = iota
	Verifying
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "anonymous"
	}
}

// Interaction events that count as activity. Anything else is ignored.
const (
	EventPointerDown = "pointerdown"
	EventKeyDown     = "keydown"
	EventScroll      = "scroll"
	EventTouchStart  = "touchstart"
)

func tracked(event string) bool {
	switch event {
	case EventPointerDown, EventKeyDown, EventScroll, EventTouchStart:
		return true
	}
	return false
}

// Verifier is the server side of a login. *client.Client implements it.
type Verifier interface {
	Login(ctx context.Context, secret string) (*client.LoginResult, error)
	VerifyCredentials(ctx context.Context, creds auth.Credentials) (bool, error)
	Refresh(ctx context.Context, token string) (*client.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type Manager struct {
	verifier Verifier
	storage  Storage
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	rec          *Record
	lastActivity time.Time
	observers    []func(State)
}

type Option func(*Manager)

func WithTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// WithInterval sets how often Run calls Tick.
func WithInterval(d time.Duration) Option {
	return func(m *Manager) { m.interval = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(v Verifier, s Storage, opts ...Option) *Manager {
	m := &Manager{
		verifier: v,
		storage:  s,
		timeout:  DefaultTimeout,
		interval: DefaultTickInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnChange registers fn to be called after every state transition.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Credential returns what to attach to privileged calls, or empty
// credentials when not authenticated.
func (m *Manager) Credential() auth.Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated || m.rec == nil {
		return auth.Credentials{}
	}
	return m.rec.credentials()
}

// Login verifies secret with the server. Nothing is stored unless the
// secret is valid.
func (m *Manager) Login(ctx context.Context, secret string) error {
	if err := m.beginVerifying(); err != nil {
		return err
	}

	res, err := m.verifier.Login(ctx, secret)

	m.mu.Lock()
	var notify func()
	if err != nil || !res.Valid {
		notify = m.transition(Anonymous)
		m.mu.Unlock()
		notify()
		if err != nil {
			return fmt.Errorf("verifying secret: %w", err)
		}
		m.logger.Warn("login rejected")
		return ErrInvalidSecret
	}

	now := m.now()
	rec := &Record{IssuedAt: now, LastActivity: now}
	if res.Token != "" {
		rec.Token = res.Token
		if res.ExpiresAt != nil {
			rec.TokenExpiresAt = *res.ExpiresAt
		}
	} else {
		rec.Secret = secret
	}
	if err := m.storage.Save(rec); err != nil {
		notify = m.transition(Anonymous)
		m.mu.Unlock()
		notify()
		return fmt.Errorf("saving session: %w", err)
	}
	m.rec = rec
	m.lastActivity = now
	notify = m.transition(Authenticated)
	m.mu.Unlock()
	notify()

	m.logger.Info("login succeeded")
	return nil
}

// Logout clears the session immediately. Server-side revocation of the
// token is attempted but its failure does not keep the session alive.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	rec := m.rec
	m.rec = nil
	clearErr := m.storage.Clear()
	notify := m.transition(Anonymous)
	m.mu.Unlock()
	notify()

	if rec != nil && rec.Token != "" {
		if err := m.verifier.Logout(ctx, rec.Token); err != nil {
			m.logger.Warn("server logout failed", "error", err)
		}
	}
	return clearErr
}

// RecordActivity notes a user interaction. It only touches memory; the
// periodic Tick persists it. Reports whether the event was counted.
func (m *Manager) RecordActivity(event string) bool {
	if !tracked(event) {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Authenticated {
		return false
	}
	m.lastActivity = m.now()
	return true
}

// Tick runs the periodic check: expire on inactivity, persist activity and
// refresh a token close to expiry.
func (m *Manager) Tick(ctx context.Context) State {
	m.mu.Lock()
	if m.state != Authenticated || m.rec == nil {
		s := m.state
		m.mu.Unlock()
		return s
	}

	now := m.now()
	if now.Sub(m.lastActivity) > m.timeout {
		notify := m.expire()
		m.mu.Unlock()
		notify()
		m.logger.Info("session expired after inactivity")
		return Expired
	}

	if !m.rec.LastActivity.Equal(m.lastActivity) {
		m.rec.LastActivity = m.lastActivity
		if err := m.storage.Save(m.rec); err != nil {
			m.logger.Warn("persisting activity failed", "error", err)
		}
	}

	var token string
	if m.rec.Token != "" && !m.rec.TokenExpiresAt.IsZero() && m.rec.TokenExpiresAt.Sub(now) < refreshMargin {
		token = m.rec.Token
	}
	m.mu.Unlock()

	if token != "" {
		return m.refresh(ctx, token)
	}
	return Authenticated
}

func (m *Manager) refresh(ctx context.Context, token string) State {
	res, err := m.verifier.Refresh(ctx, token)

	m.mu.Lock()
	if m.state != Authenticated || m.rec == nil || m.rec.Token != token {
		s := m.state
		m.mu.Unlock()
		return s
	}

	if err != nil {
		if !errors.Is(err, client.ErrUnauthorized) {
			m.mu.Unlock()
			m.logger.Warn("token refresh failed", "error", err)
			return Authenticated
		}
		notify := m.expire()
		m.mu.Unlock()
		notify()
		m.logger.Info("session token no longer accepted")
		return Expired
	}

	m.rec.Token = res.Token
	if res.ExpiresAt != nil {
		m.rec.TokenExpiresAt = *res.ExpiresAt
	}
	m.rec.IssuedAt = m.now()
	if err := m.storage.Save(m.rec); err != nil {
		m.logger.Warn("persisting refreshed token failed", "error", err)
	}
	m.mu.Unlock()
	return Authenticated
}

// Restore resumes a stored session on start-up. A stored session is only
// trusted after the server accepts its credential again.
func (m *Manager) Restore(ctx context.Context) (State, error) {
	if m.State() == Verifying {
		return Verifying, ErrLoginInProgress
	}

	rec, err := m.storage.Load()
	if err != nil {
		return Anonymous, fmt.Errorf("loading session: %w", err)
	}
	if rec == nil {
		return Anonymous, nil
	}

	now := m.now()
	stale := now.Sub(rec.IssuedAt) >= m.timeout ||
		now.Sub(rec.LastActivity) > m.timeout ||
		(!rec.TokenExpiresAt.IsZero() && !now.Before(rec.TokenExpiresAt)) ||
		rec.credentials() == (auth.Credentials{})
	if stale {
		return Anonymous, m.storage.Clear()
	}

	if err := m.beginVerifying(); err != nil {
		return Verifying, err
	}

	valid, err := m.verifier.VerifyCredentials(ctx, rec.credentials())

	m.mu.Lock()
	var notify func()
	if err != nil || !valid {
		if err == nil {
			err = m.storage.Clear()
		} else {
			err = fmt.Errorf("verifying stored session: %w", err)
		}
		notify = m.transition(Anonymous)
		m.mu.Unlock()
		notify()
		return Anonymous, err
	}

	m.rec = rec
	m.lastActivity = rec.LastActivity
	notify = m.transition(Authenticated)
	m.mu.Unlock()
	notify()
	return Authenticated, nil
}

// beginVerifying moves to Verifying unless another verification holds it.
func (m *Manager) beginVerifying() error {
	m.mu.Lock()
	if m.state == Verifying {
		m.mu.Unlock()
		return ErrLoginInProgress
	}
	notify := m.transition(Verifying)
	m.mu.Unlock()
	notify()
	return nil
}

// Run ticks until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// expire must be called with mu held.
func (m *Manager) expire() func() {
	m.rec = nil
	if err := m.storage.Clear(); err != nil {
		m.logger.Warn("clearing session failed", "error", err)
	}
	return m.transition(Expired)
}

// transition must be called with mu held. The returned func notifies
// observers and must be called after mu is released.
func (m *Manager) transition(to State) func() {
	if m.state == to {
		return func() {}
	}
	m.state = to
	observers := append([]func(State){}, m.observers...)
	return func() {
		for _, fn := range observers {
			fn(to)
		}
	}
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/linkgate/internal/clock"
	"github.com/serroba/linkgate/internal/kv"
	"go.uber.org/zap"
)

// EvictionScheduler removes a key at some later point without blocking
// the caller.
type EvictionScheduler interface {
	Schedule(ctx context.Context, key, reason string)
}

// Eviction reasons reported to the scheduler.
const (
	ReasonCorrupt = "corrupt"
	ReasonExpired = "expired"
)

// Manager owns session records.
type Manager struct {
	store     kv.Store
	evictions EvictionScheduler
	clock     clock.Clock
	ttl       time.Duration
	logger    *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

// NewManager creates a session manager. evictions receives corrupt records
// found during validation.
func NewManager(store kv.Store, evictions EvictionScheduler, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		evictions: evictions,
		clock:     clock.Real{},
		ttl:       DefaultTTL,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Now returns the manager's current time.
func (m *Manager) Now() time.Time {
	return m.clock.Now()
}

// Create stores a new session expiring after the configured window.
func (m *Manager) Create(ctx context.Context, p Payload) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	s := &Session{
		Token:     token,
		ExpiresAt: m.clock.Now().Add(m.ttl).UTC(),
		Profile:   p.Profile,
		Me:        p.Me,
		Role:      p.Role,
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	if err := m.store.Put(ctx, Key(token), string(raw), kv.WithTTL(m.ttl)); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return s, nil
}

// Validate returns the session for token. Unknown and corrupt tokens yield
// ErrInvalid; expired ones yield ErrExpired after their record is deleted.
func (m *Manager) Validate(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalid
	}

	key := Key(token)

	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrInvalid
		}

		return nil, fmt.Errorf("get session: %w", err)
	}

	s, err := Decode(raw)
	if err != nil {
		m.logger.Warn("corrupt session record", zap.Error(err))

		if m.evictions != nil {
			m.evictions.Schedule(ctx, key, ReasonCorrupt)
		}

		return nil, ErrInvalid
	}

	if s.Expired(m.clock.Now()) {
		if err := m.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("evict expired session: %w", err)
		}

		return nil, ErrExpired
	}

	s.Token = token

	return s, nil
}

// Revoke deletes the session. Revoking an unknown token is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := m.store.Delete(ctx, Key(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

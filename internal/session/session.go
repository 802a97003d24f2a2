// Package session keeps each operator's transient view state between
// requests, keyed by an opaque cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/PabloPavan/userdesk/internal/users"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID              string          `json:"id"`
	View            users.ViewState `json:"view"`
	CreatedAt       time.Time       `json:"created_at"`
	LastRefreshedAt time.Time       `json:"last_refreshed_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

type Store interface {
	Set(ctx context.Context, id string, s Session, ttl time.Duration) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type Manager struct {
	Store         Store
	TTL           time.Duration
	MaxAge        time.Duration
	RefreshBefore time.Duration
	IDGenerator   func() string
}

const DefaultTTL = 24 * time.Hour

func (m *Manager) ttl() time.Duration {
	if m.TTL <= 0 {
		return DefaultTTL
	}
	return m.TTL
}

// Create starts a session with a default view.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if m.Store == nil {
		return nil, errors.New("session store not configured")
	}

	idGen := m.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "ses_" + uuid.NewString()
		}
	}

	now := time.Now()
	s := Session{
		ID:              idGen(),
		View:            users.NewViewState(),
		CreatedAt:       now,
		LastRefreshedAt: now,
		ExpiresAt:       now.Add(m.ttl()),
	}

	if err := m.Store.Set(ctx, s.ID, s, m.ttl()); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if m.Store == nil {
		return nil, errors.New("session store not configured")
	}
	sess, err := m.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m.ensureSessionTimestamps(sess, now)
	if m.MaxAge > 0 && now.After(sess.CreatedAt.Add(m.MaxAge)) {
		_ = m.Store.Delete(ctx, id)
		return nil, ErrNotFound
	}

	return sess, nil
}

// Ensure returns the session named id, or a fresh one when id is empty,
// unknown or expired. created reports which of the two happened.
func (m *Manager) Ensure(ctx context.Context, id string) (sess *Session, created bool, err error) {
	if id != "" {
		sess, err = m.Get(ctx, id)
		if err == nil {
			return sess, false, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
	}
	sess, err = m.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

// Save persists the session's view without extending its lifetime.
func (m *Manager) Save(ctx context.Context, sess *Session) error {
	if m.Store == nil {
		return errors.New("session store not configured")
	}
	if sess == nil {
		return errors.New("session not provided")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrNotFound
	}
	return m.Store.Set(ctx, sess.ID, *sess, ttl)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.Store == nil {
		return errors.New("session store not configured")
	}
	return m.Store.Delete(ctx, id)
}

func (m *Manager) Refresh(ctx context.Context, sess *Session) (*Session, bool, error) {
	if m.Store == nil {
		return nil, false, errors.New("session store not configured")
	}
	if sess == nil {
		return nil, false, errors.New("session not provided")
	}

	now := time.Now()
	m.ensureSessionTimestamps(sess, now)
	if m.MaxAge > 0 && now.After(sess.CreatedAt.Add(m.MaxAge)) {
		_ = m.Store.Delete(ctx, sess.ID)
		return nil, false, ErrNotFound
	}

	if m.RefreshBefore > 0 {
		if time.Until(sess.ExpiresAt) > m.RefreshBefore {
			return sess, false, nil
		}
	}

	sess.ExpiresAt = now.Add(m.ttl())
	sess.LastRefreshedAt = now

	if err := m.Store.Set(ctx, sess.ID, *sess, m.ttl()); err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (m *Manager) ensureSessionTimestamps(sess *Session, now time.Time) {
	if sess.CreatedAt.IsZero() {
		if !sess.ExpiresAt.IsZero() {
			sess.CreatedAt = sess.ExpiresAt.Add(-m.ttl())
			if sess.CreatedAt.After(now) {
				sess.CreatedAt = now
			}
		} else {
			sess.CreatedAt = now
		}
	}
	if sess.LastRefreshedAt.IsZero() {
		sess.LastRefreshedAt = sess.CreatedAt
	}
}

type ctxKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}

// Package session keeps server-side login sessions created by key redemption.
package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/vovakirdan/keyroom-server/internal/utils"
)

// DefaultTTL is how long a session stays valid after login.
const DefaultTTL = 24 * time.Hour

// ErrEmptyUsername is returned when starting a session without a name.
var ErrEmptyUsername = errors.New("username is required")

// Session binds a connection to a username until ExpiresAt.
type Session struct {
	ID        string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Manager stores sessions in memory. Expiry is checked lazily on lookup.
type Manager struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() string

	mu       sync.Mutex
	sessions map[string]Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithIDGenerator overrides the session id source.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// NewManager creates a manager whose sessions live for ttl.
func NewManager(ttl time.Duration, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		ttl:      ttl,
		now:      time.Now,
		newID:    utils.NewID,
		sessions: make(map[string]Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Start creates a new session for username.
func (m *Manager) Start(username string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return Session{}, ErrEmptyUsername
	}

	now := m.now()
	s := Session{
		ID:        m.newID(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s, nil
}

// Lookup returns the live session for id. Expired sessions are removed and reported absent.
func (m *Manager) Lookup(id string) (Session, bool) {
	if id == "" {
		return Session{}, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return Session{}, false
	}
	if s.Expired(m.now()) {
		delete(m.sessions, id)
		return Session{}, false
	}
	return s, true
}

// End removes the session. Unknown ids are ignored.
func (m *Manager) End(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of stored sessions, including not yet collected expired ones.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

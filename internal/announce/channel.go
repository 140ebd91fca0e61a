// Package announce holds the single current operator announcement.
package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/keyroom-server/internal/metrics"
	"github.com/vovakirdan/keyroom-server/internal/store"
)

// Broadcaster pushes an announcement to every connected client.
type Broadcaster interface {
	BroadcastAnnouncement(text string) error
}

// Channel owns the current announcement. Set is the only mutation path.
type Channel struct {
	store       store.AnnouncementStore
	broadcaster Broadcaster
	fallback    string
	log         *zerolog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time

	// setMu serializes Set so broadcasts follow persistence order.
	// Readers never take it.
	setMu sync.Mutex

	mu      sync.RWMutex
	current store.Announcement
	set     bool
}

// Option configures a Channel.
type Option func(*Channel)

// WithDefault sets the text returned before any announcement was made.
func WithDefault(text string) Option {
	return func(c *Channel) { c.fallback = text }
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Channel) { c.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// New loads the persisted announcement once. A missing or unreadable value
// leaves the channel on its default text.
func New(ctx context.Context, st store.AnnouncementStore, b Broadcaster, logger *zerolog.Logger, opts ...Option) *Channel {
	c := &Channel{
		store:       st,
		broadcaster: b,
		log:         logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	a, err := st.LoadAnnouncement(ctx)
	switch {
	case err == nil:
		c.current = a
		c.set = true
		logger.Info().Time("updated_at", a.UpdatedAt).Msg("announcement loaded")
	case errors.Is(err, store.ErrNotFound):
		logger.Debug().Msg("no stored announcement")
	default:
		logger.Warn().Err(err).Msg("failed to load announcement, using default")
	}

	return c
}

// Current returns the latest announcement text, or the default if none was ever set.
func (c *Channel) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.set {
		return c.fallback
	}
	return c.current.Text
}

// Latest returns the stored announcement and whether one exists.
func (c *Channel) Latest() (store.Announcement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.set
}

// Set persists text, makes it current and broadcasts it.
// Admin verification happens before this is called.
func (c *Channel) Set(ctx context.Context, text string) error {
	c.setMu.Lock()
	defer c.setMu.Unlock()

	a := store.Announcement{Text: text, UpdatedAt: c.now()}
	if err := c.store.SaveAnnouncement(ctx, a); err != nil {
		return fmt.Errorf("persist announcement: %w", err)
	}

	c.mu.Lock()
	c.current = a
	c.set = true
	c.mu.Unlock()

	c.metrics.AnnouncementSet()
	c.log.Info().Int("length", len(text)).Msg("announcement set")

	if c.broadcaster == nil {
		return nil
	}
	if err := c.broadcaster.BroadcastAnnouncement(text); err != nil {
		return fmt.Errorf("broadcast announcement: %w", err)
	}
	return nil
}

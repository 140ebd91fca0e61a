// Package keys issues and redeems one-time login keys.
package keys

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	applog "github.com/vovakirdan/keyroom-server/internal/log"
	"github.com/vovakirdan/keyroom-server/internal/metrics"
	"github.com/vovakirdan/keyroom-server/internal/store"
	"github.com/vovakirdan/keyroom-server/internal/utils"
)

const (
	// DefaultCodeLength is the number of characters in a generated key.
	DefaultCodeLength = 8
	// maxIssueAttempts bounds the regenerate-on-collision loop.
	maxIssueAttempts = 16
)

var (
	// ErrInvalidKey is returned for unknown and already used keys alike.
	ErrInvalidKey = errors.New("invalid key")
	// ErrCodeSpaceExhausted is returned when no unique code could be generated.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique key")
)

// Generator produces candidate key codes.
type Generator func() (string, error)

// Service owns the key table. All reads and writes go through its mutex, so
// a code can be redeemed by at most one caller.
type Service struct {
	store   store.KeyStore
	log     *zerolog.Logger
	metrics *metrics.Metrics
	gen     Generator
	now     func() time.Time

	mu    sync.Mutex
	table store.KeyTable
}

// Option configures a Service.
type Option func(*Service)

// WithGenerator overrides the code generator.
func WithGenerator(gen Generator) Option {
	return func(s *Service) { s.gen = gen }
}

// WithCodeLength sets the length of generated codes.
func WithCodeLength(n int) Option {
	return func(s *Service) {
		s.gen = func() (string, error) { return utils.NewCode(n) }
	}
}

// WithMetrics attaches Prometheus counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService loads the persisted table once. A load failure is logged and the
// service starts with an empty table.
func NewService(ctx context.Context, keyStore store.KeyStore, logger *zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: keyStore,
		log:   logger,
		gen:   func() (string, error) { return utils.NewCode(DefaultCodeLength) },
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	table, err := keyStore.LoadKeys(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load keys, starting with an empty table")
		table = store.KeyTable{}
	}
	s.table = table
	logger.Info().Int("keys", len(table)).Msg("key table loaded")

	return s
}

// Issue creates a new unused key for owner and persists the table before returning.
func (s *Service) Issue(ctx context.Context, owner string) (string, error) {
	owner = strings.TrimSpace(owner)

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCode()
	if err != nil {
		return "", err
	}

	s.table[code] = store.Key{
		Code:      code,
		Owner:     owner,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveKeys(ctx, s.table); err != nil {
		delete(s.table, code)
		return "", fmt.Errorf("persist keys: %w", err)
	}

	s.metrics.KeyIssued()
	s.log.Info().Str("owner", owner).Str("key", applog.Redact(code)).Msg("key issued")
	return code, nil
}

// uniqueCode must be called with mu held.
func (s *Service) uniqueCode() (string, error) {
	for range maxIssueAttempts {
		code, err := s.gen()
		if err != nil {
			return "", fmt.Errorf("generate key: %w", err)
		}
		if _, taken := s.table[code]; !taken {
			return code, nil
		}
		s.log.Warn().Str("key", applog.Redact(code)).Msg("generated key collides, regenerating")
	}
	return "", ErrCodeSpaceExhausted
}

// Redeem marks code as used and returns its owner. redeemedBy is recorded for audit.
// Codes match exactly. Unknown and used codes both yield ErrInvalidKey.
func (s *Service) Redeem(ctx context.Context, code, redeemedBy string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.table[code]
	if !ok || k.Used {
		s.metrics.Redemption(metrics.ResultInvalid)
		return "", ErrInvalidKey
	}

	prev := k
	at := s.now()
	k.Used = true
	k.RedeemedBy = strings.TrimSpace(redeemedBy)
	k.RedeemedAt = &at
	s.table[code] = k

	if err := s.store.SaveKeys(ctx, s.table); err != nil {
		s.table[code] = prev
		s.metrics.Redemption(metrics.ResultError)
		return "", fmt.Errorf("persist keys: %w", err)
	}

	s.metrics.Redemption(metrics.ResultSuccess)
	s.log.Info().Str("owner", k.Owner).Str("key", applog.Redact(code)).Msg("key redeemed")
	return k.Owner, nil
}

// List returns every key, oldest first.
func (s *Service) List() []store.Key {
	s.mu.Lock()
	out := make([]store.Key, 0, len(s.table))
	for _, k := range s.table.Clone() {
		out = append(out, k)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

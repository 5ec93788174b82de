// Package memory provides an in-process nonce.Store suitable for single
// instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ggoodman/lti1p3-go/nonce"
)

// sweepEvery controls how many Consume calls pass between expiry sweeps.
const sweepEvery = 256

// Store implements nonce.Store with a mutex guarded map.
type Store struct {
	mu      sync.Mutex
	entries map[string]time.Time
	calls   int
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]time.Time), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Consume(ctx context.Context, value string, ttl time.Duration) (bool, error) {
	if value == "" {
		return false, nonce.ErrEmptyNonce
	}
	if ttl <= 0 {
		ttl = nonce.DefaultTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		for k, exp := range s.entries {
			if !now.Before(exp) {
				delete(s.entries, k)
			}
		}
	}

	if exp, ok := s.entries[value]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[value] = now.Add(ttl)
	return true, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

var _ nonce.Store = (*Store)(nil)

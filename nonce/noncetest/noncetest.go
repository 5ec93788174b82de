// Package noncetest provides a conformance suite for nonce.Store
// implementations.
package noncetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ggoodman/lti1p3-go/nonce"
)

// Factory creates a fresh store for one subtest.
type Factory func(t *testing.T) nonce.Store

// RunStoreTests exercises the nonce.Store contract.
func RunStoreTests(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("first use is fresh", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		ok, err := s.Consume(context.Background(), uuid.NewString(), time.Minute)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if !ok {
			t.Fatalf("expected first use to be fresh")
		}
	})

	t.Run("replay is rejected", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		v := uuid.NewString()
		if ok, err := s.Consume(context.Background(), v, time.Minute); err != nil || !ok {
			t.Fatalf("first Consume = %v, %v", ok, err)
		}
		ok, err := s.Consume(context.Background(), v, time.Minute)
		if err != nil {
			t.Fatalf("Consume: %v", err)
		}
		if ok {
			t.Fatalf("expected replay to be rejected")
		}
	})

	t.Run("distinct values are independent", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		for i := 0; i < 3; i++ {
			if ok, err := s.Consume(context.Background(), uuid.NewString(), time.Minute); err != nil || !ok {
				t.Fatalf("Consume #%d = %v, %v", i, ok, err)
			}
		}
	})

	t.Run("empty value", func(t *testing.T) {
		s := factory(t)
		defer s.Close()
		if _, err := s.Consume(context.Background(), "", time.Minute); !errors.Is(err, nonce.ErrEmptyNonce) {
			t.Fatalf("want ErrEmptyNonce, got %v", err)
		}
	})
}

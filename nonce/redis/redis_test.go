package redis

import (
	"context"
	"testing"

	"github.com/ggoodman/lti1p3-go/nonce"
	"github.com/ggoodman/lti1p3-go/nonce/noncetest"
)

func TestRedisStore(t *testing.T) {
	// Quick availability check to allow graceful skip in environments without Redis
	s, err := NewFromEnv(context.Background())
	if err != nil {
		t.Skipf("skipping redis nonce store tests: %v", err)
		return
	}
	_ = s.Close()

	noncetest.RunStoreTests(t, func(t *testing.T) nonce.Store {
		ss, err := NewFromEnv(context.Background())
		if err != nil {
			t.Fatalf("NewFromEnv: %v", err)
		}
		return ss
	})
}

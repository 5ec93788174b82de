// Package nonce records LTI message nonces so a signed launch cannot be
// replayed while it is still within its validity window.
package nonce

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL bounds how long a nonce is remembered when the token does not
// carry a usable expiry.
const DefaultTTL = 10 * time.Minute

// ErrEmptyNonce is returned by stores asked to consume an empty value.
var ErrEmptyNonce = errors.New("nonce: empty value")

// Store remembers consumed nonces.
type Store interface {
	// Consume records value as used for ttl. It reports false when value was
	// already recorded and has not expired yet. An error is returned only for
	// storage failures.
	Consume(ctx context.Context, value string, ttl time.Duration) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

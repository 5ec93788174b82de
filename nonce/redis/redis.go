// Package redis provides a Redis-backed nonce.Store so that replay
// protection holds across horizontally scaled instances.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"

	"github.com/ggoodman/lti1p3-go/nonce"
)

// Config for the Redis nonce store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// KeyPrefix for all keys. ENV: LTI_NONCE_KEY_PREFIX
	KeyPrefix string `env:"LTI_NONCE_KEY_PREFIX,default=lti:nonce:"`
	// Client overrides RedisAddr when set.
	Client *redis.Client
}

// Store implements nonce.Store with SET NX and a TTL per nonce.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

// New connects (or reuses cfg.Client) and pings Redis.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cl := cfg.Client
	if cl == nil {
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		cl = redis.NewClient(&redis.Options{Addr: addr})
	}
	if err := cl.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "lti:nonce:"
	}
	return &Store{client: cl, keyPrefix: prefix}, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	// Defaults are provided via struct tags.
	_ = envdecode.Decode(&cfg)
	return New(ctx, cfg)
}

func (s *Store) Consume(ctx context.Context, value string, ttl time.Duration) (bool, error) {
	if value == "" {
		return false, nonce.ErrEmptyNonce
	}
	if ttl <= 0 {
		ttl = nonce.DefaultTTL
	}
	key := s.keyPrefix + value
	ok, err := s.client.SetNX(ctx, key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record nonce %s: %w", key, err)
	}
	return ok, nil
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

var _ nonce.Store = (*Store)(nil)

// Package redis provides a Redis implementation of quota.AnonymousStore.
// It replaces the in-process anonymous counter when the service runs on
// more than one instance: the check-then-increment is a single Lua script,
// and keys expire at the end of their UTC day.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/replyforge/replyforge/pkg/quota"
)

// Store implements quota.AnonymousStore using Redis.
type Store struct {
	client    redis.UniversalClient
	config    Config
	increment *redis.Script
}

// Config holds Redis store configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "replyforge:").
	KeyPrefix string

	// TTLGrace is added to the natural end-of-day TTL so a counter stays
	// readable briefly after midnight (default: 1 hour).
	TTLGrace time.Duration

	// Now overrides the time source, for tests (default: time.Now).
	Now func() time.Time
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "replyforge:",
		TTLGrace:  time.Hour,
	}
}

// New creates a new Redis store adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "replyforge:"
	}
	if config.TTLGrace == 0 {
		config.TTLGrace = time.Hour
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Store{
		client: client,
		config: config,
		// Reject at limit, otherwise INCR; the TTL is set only when the key
		// is created so later calls cannot extend the window.
		increment: redis.NewScript(`
			local key = KEYS[1]
			local limit = tonumber(ARGV[1])
			local ttl = tonumber(ARGV[2])

			local used = tonumber(redis.call('GET', key) or '0')
			if used >= limit then
				return {used, 0}
			end

			used = redis.call('INCR', key)
			if used == 1 and ttl > 0 then
				redis.call('EXPIRE', key, ttl)
			end
			return {used, 1}
		`),
	}, nil
}

// Increment implements quota.AnonymousStore.
func (s *Store) Increment(ctx context.Context, sessionID, day string, limit int) (int, bool, error) {
	ttl := quota.UntilEndOfDayUTC(s.config.Now()) + s.config.TTLGrace

	res, err := s.increment.Run(ctx, s.client,
		[]string{s.key(sessionID, day)},
		limit, int(ttl.Seconds()),
	).Slice()
	if err != nil {
		return 0, false, fmt.Errorf("failed to run increment script: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected script result: %v", res)
	}

	used, ok := res[0].(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected used value: %v", res[0])
	}
	allowed, ok := res[1].(int64)
	if !ok {
		return 0, false, fmt.Errorf("unexpected allowed value: %v", res[1])
	}

	return int(used), allowed == 1, nil
}

// Get implements quota.AnonymousStore.
func (s *Store) Get(ctx context.Context, sessionID, day string) (int, error) {
	used, err := s.client.Get(ctx, s.key(sessionID, day)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}
	return used, nil
}

func (s *Store) key(sessionID, day string) string {
	return fmt.Sprintf("%sanon:%s:%s", s.config.KeyPrefix, sessionID, day)
}

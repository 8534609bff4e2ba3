// Package postgres provides PostgreSQL implementations of quota.UserStore
// and quota.ProfileStore. Daily counters are incremented with a single
// conditional upsert, so concurrent requests from the same user cannot lose
// updates or overshoot the limit.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/replyforge/replyforge/pkg/quota"
)

// Schema describes the tables this store expects. Migration tooling is out
// of scope; EnsureSchema applies it for development setups.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id    TEXT PRIMARY KEY,
	email      TEXT NOT NULL DEFAULT '',
	pro        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS daily_usage (
	user_id    TEXT NOT NULL,
	day        TEXT NOT NULL,
	count      INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (user_id, day)
);
`

// Store implements quota.UserStore and quota.ProfileStore using PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL store configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string.
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL store adapter.
func New(ctx context.Context, config Config) (*Store, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, config: config}, nil
}

// NewWithPool wraps an existing connection pool.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close closes the PostgreSQL connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the expected tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// GetProfile implements quota.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, userID string) (*quota.Profile, error) {
	var p quota.Profile
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, email, pro, created_at
			FROM profiles WHERE user_id = $1`,
		userID).Scan(&p.UserID, &p.Email, &p.Pro, &p.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, quota.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// CreateProfile implements quota.ProfileStore. The insert is idempotent:
// a conflicting row means the profile already exists, which is fine.
func (s *Store) CreateProfile(ctx context.Context, userID, email string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, email, pro, created_at)
			VALUES ($1, $2, FALSE, now())
			ON CONFLICT (user_id) DO NOTHING`,
		userID, email)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetDailyCount implements quota.UserStore.
func (s *Store) GetDailyCount(ctx context.Context, userID, day string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM daily_usage WHERE user_id = $1 AND day = $2`,
		userID, day).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get daily count: %w", err)
	}
	return count, nil
}

// IncrementDailyCount implements quota.UserStore. The whole insert-or-add-1
// is one statement: the ON CONFLICT branch re-checks the limit under the
// row lock, so two racing requests can never both pass the last unit.
func (s *Store) IncrementDailyCount(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	var newCount int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO daily_usage (user_id, day, count, updated_at)
			VALUES ($1, $2, 1, now())
			ON CONFLICT (user_id, day) DO UPDATE
				SET count = daily_usage.count + 1, updated_at = now()
				WHERE daily_usage.count < $3
			RETURNING count`,
		userID, day, limit).Scan(&newCount)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conditional update matched nothing: the counter is at limit.
		current, getErr := s.GetDailyCount(ctx, userID, day)
		if getErr != nil {
			return 0, false, getErr
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment daily count: %w", err)
	}
	return newCount, true, nil
}

package quota

import (
	"context"
	"time"
)

// AnonymousStore tracks per-session daily counters. Records are ephemeral:
// the in-process implementation loses them on restart, the Redis
// implementation ages them out with a day-scoped TTL.
type AnonymousStore interface {
	// Increment atomically performs check-then-increment for (sessionID, day).
	// If the counter is already at limit it returns the current count with
	// allowed=false and does not mutate. The critical section is scoped to
	// the key: concurrent requests for different sessions never contend.
	Increment(ctx context.Context, sessionID, day string, limit int) (used int, allowed bool, err error)

	// Get returns the current count for (sessionID, day) without mutating.
	// A missing record reads as zero.
	Get(ctx context.Context, sessionID, day string) (int, error)
}

// UserStore tracks durable per-user daily counters keyed by (userID, day).
type UserStore interface {
	// GetDailyCount returns the current count for (userID, day). A missing
	// row reads as zero.
	GetDailyCount(ctx context.Context, userID, day string) (int, error)

	// IncrementDailyCount performs an atomic conditional upsert-increment:
	// insert-or-add 1 while count < limit, in a single storage-level
	// operation, never an application-level read-modify-write. When the
	// counter is at limit it returns the current count with allowed=false.
	IncrementDailyCount(ctx context.Context, userID, day string, limit int) (newCount int, allowed bool, err error)
}

// Profile is the stored account record for an authenticated caller.
type Profile struct {
	UserID    string
	Email     string
	Pro       bool
	CreatedAt time.Time
}

// ProfileStore persists user profiles. Profiles are created lazily on the
// first authenticated request.
type ProfileStore interface {
	// GetProfile returns the profile for userID, or ErrProfileNotFound.
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// CreateProfile inserts a default free-tier profile. It is idempotent:
	// a duplicate-key conflict means the profile already exists and is not
	// an error.
	CreateProfile(ctx context.Context, userID, email string) error
}

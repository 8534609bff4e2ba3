// Package memory provides in-process implementations of the ledger stores.
// Anonymous counters are the intended production use (lifetime = process
// lifetime); the user and profile stores exist for development and testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/replyforge/replyforge/pkg/quota"
)

// counter is a single (identity, day) cell. Each cell carries its own lock
// so the check-then-increment critical section is per key; requests for
// different identities never contend.
type counter struct {
	mu   sync.Mutex
	used int
}

// Store implements quota.AnonymousStore, quota.UserStore and
// quota.ProfileStore using in-memory maps.
type Store struct {
	mu       sync.Mutex // guards map membership only, never held during a count mutation
	counters map[string]*counter
	profiles map[string]*quota.Profile
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		counters: make(map[string]*counter),
		profiles: make(map[string]*quota.Profile),
	}
}

// cell returns the counter for key, creating it lazily.
func (s *Store) cell(key string) *counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		c = &counter{}
		s.counters[key] = c
	}
	return c
}

// increment is the shared atomic check-then-increment.
func (s *Store) increment(key string, limit int) (int, bool) {
	c := s.cell(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.used >= limit {
		return c.used, false
	}
	c.used++
	return c.used, true
}

// get reads a counter without mutating; missing records read as zero.
func (s *Store) get(key string) int {
	s.mu.Lock()
	c, ok := s.counters[key]
	s.mu.Unlock()
	if !ok {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Increment implements quota.AnonymousStore.
func (s *Store) Increment(ctx context.Context, sessionID, day string, limit int) (int, bool, error) {
	used, allowed := s.increment(counterKey("anon", sessionID, day), limit)
	return used, allowed, nil
}

// Get implements quota.AnonymousStore.
func (s *Store) Get(ctx context.Context, sessionID, day string) (int, error) {
	return s.get(counterKey("anon", sessionID, day)), nil
}

// GetDailyCount implements quota.UserStore.
func (s *Store) GetDailyCount(ctx context.Context, userID, day string) (int, error) {
	return s.get(counterKey("user", userID, day)), nil
}

// IncrementDailyCount implements quota.UserStore.
func (s *Store) IncrementDailyCount(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	used, allowed := s.increment(counterKey("user", userID, day), limit)
	return used, allowed, nil
}

// GetProfile implements quota.ProfileStore.
func (s *Store) GetProfile(ctx context.Context, userID string) (*quota.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, quota.ErrProfileNotFound
	}

	// Return a copy to prevent external mutations
	pCopy := *p
	return &pCopy, nil
}

// CreateProfile implements quota.ProfileStore. An existing profile is left
// untouched, matching the duplicate-key semantics of the durable store.
func (s *Store) CreateProfile(ctx context.Context, userID, email string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[userID]; ok {
		return nil
	}
	s.profiles[userID] = &quota.Profile{
		UserID:    userID,
		Email:     email,
		Pro:       false,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// SetPro flips the pro flag for a profile. Used by tests and the examples;
// in production the billing collaborator owns this transition.
func (s *Store) SetPro(userID string, pro bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[userID]; ok {
		p.Pro = pro
	}
}

// Clear removes all data (useful for testing).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters = make(map[string]*counter)
	s.profiles = make(map[string]*quota.Profile)
}

func counterKey(kind, id, day string) string {
	return fmt.Sprintf("%s:%s:%s", kind, id, day)
}

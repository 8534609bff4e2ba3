package quota

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a check-and-increment.
type Decision struct {
	// Allowed reports whether a quota unit was consumed.
	Allowed bool

	// Used is the counter after the call: post-increment when allowed,
	// unchanged when rejected.
	Used int

	// Limit is the displayed limit; nil for pro users.
	Limit *int

	// Pro reports whether the caller is on the pro tier.
	Pro bool
}

// Snapshot is the quota state attached to responses.
type Snapshot struct {
	Limit     *int `json:"limit"`
	Used      int  `json:"used"`
	Remaining *int `json:"remaining"`
	Pro       bool `json:"pro"`
}

// Snapshot derives the caller-facing quota state from a decision.
// Remaining is nil when no limit is displayed, never negative otherwise.
func (d Decision) Snapshot() Snapshot {
	s := Snapshot{Limit: d.Limit, Used: d.Used, Pro: d.Pro}
	if d.Limit != nil {
		rem := *d.Limit - d.Used
		if rem < 0 {
			rem = 0
		}
		s.Remaining = &rem
	}
	return s
}

// Config holds ledger configuration.
type Config struct {
	// Limits is the per-tier daily limit table (default: DefaultLimits).
	Limits Limits

	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking ledger operations (default: NoopMetrics).
	Metrics Metrics

	// Now overrides the time source, for tests (default: time.Now).
	Now func() time.Time
}

// Ledger meters daily usage per identity against tier limits. Anonymous
// counters live in an AnonymousStore, authenticated counters in a durable
// UserStore. The check-then-increment for a given key is atomic inside the
// store; the ledger itself holds no locks, so nothing is held across the
// downstream completion call.
type Ledger struct {
	anon    AnonymousStore
	users   UserStore
	limits  Limits
	logger  Logger
	metrics Metrics
	now     func() time.Time
}

// NewLedger creates a ledger over the given stores.
func NewLedger(anon AnonymousStore, users UserStore, config Config) (*Ledger, error) {
	if anon == nil || users == nil {
		return nil, ErrStorageUnavailable
	}

	if config.Limits == (Limits{}) {
		config.Limits = DefaultLimits()
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Ledger{
		anon:    anon,
		users:   users,
		limits:  config.Limits,
		logger:  config.Logger,
		metrics: config.Metrics,
		now:     config.Now,
	}, nil
}

// CheckAndIncrement consumes one quota unit for id on the current UTC day.
// When the tier limit is reached it returns Allowed=false with the counter
// untouched. The consumed unit is not refunded if the downstream call later
// fails; quota-safety wins over refund-on-failure.
func (l *Ledger) CheckAndIncrement(ctx context.Context, id Identity) (Decision, error) {
	day := DayKey(l.now())
	limit := l.limits.enforced(id)

	var (
		used    int
		allowed bool
		err     error
	)

	switch v := id.(type) {
	case Anonymous:
		start := l.now()
		used, allowed, err = l.anon.Increment(ctx, v.SessionID, day, limit)
		l.metrics.RecordStorageOperation("anon_increment", l.now().Sub(start), err)

	case Authenticated:
		used, allowed, err = l.incrementUser(ctx, v.UserID, day, limit)

	default:
		return Decision{}, fmt.Errorf("unknown identity type %T", id)
	}

	if err != nil {
		return Decision{}, fmt.Errorf("ledger increment for %s/%s: %w", id.TierName(), day, err)
	}

	l.metrics.RecordDecision(id.TierName(), allowed)
	if !allowed {
		l.logger.Info("quota rejected",
			Field{Key: "identity", Value: id.Key()},
			Field{Key: "tier", Value: id.TierName()},
			Field{Key: "day", Value: day},
			Field{Key: "used", Value: used},
			Field{Key: "limit", Value: limit},
		)
	}

	return l.decision(id, used, allowed), nil
}

// incrementUser meters an authenticated caller. The read is a best-effort
// early exit; the upsert itself re-checks the limit atomically, so two
// racing requests can never both pass with one unit remaining.
func (l *Ledger) incrementUser(ctx context.Context, userID, day string, limit int) (int, bool, error) {
	start := l.now()
	current, err := l.users.GetDailyCount(ctx, userID, day)
	l.metrics.RecordStorageOperation("user_get_count", l.now().Sub(start), err)
	if err != nil {
		return 0, false, err
	}
	if current >= limit {
		return current, false, nil
	}

	start = l.now()
	newCount, allowed, err := l.users.IncrementDailyCount(ctx, userID, day, limit)
	l.metrics.RecordStorageOperation("user_increment", l.now().Sub(start), err)
	if err != nil {
		return 0, false, err
	}
	return newCount, allowed, nil
}

// Peek returns the current quota snapshot for id without consuming a unit.
func (l *Ledger) Peek(ctx context.Context, id Identity) (Snapshot, error) {
	day := DayKey(l.now())

	var (
		used int
		err  error
	)
	switch v := id.(type) {
	case Anonymous:
		used, err = l.anon.Get(ctx, v.SessionID, day)
	case Authenticated:
		used, err = l.users.GetDailyCount(ctx, v.UserID, day)
	default:
		return Snapshot{}, fmt.Errorf("unknown identity type %T", id)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("ledger peek for %s/%s: %w", id.TierName(), day, err)
	}

	return l.decision(id, used, false).Snapshot(), nil
}

func (l *Ledger) decision(id Identity, used int, allowed bool) Decision {
	_, pro := proTier(id)
	return Decision{
		Allowed: allowed,
		Used:    used,
		Limit:   l.limits.displayed(id),
		Pro:     pro,
	}
}

func proTier(id Identity) (Tier, bool) {
	if a, ok := id.(Authenticated); ok {
		return a.Tier, a.Tier == TierPro
	}
	return "", false
}

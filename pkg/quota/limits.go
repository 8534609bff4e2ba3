package quota

// Limits holds the per-day quota for each identity class.
type Limits struct {
	// Anonymous is the daily limit for callers without an account.
	Anonymous int

	// Free is the daily limit for authenticated free-tier users.
	Free int

	// ProSafetyCap bounds pro usage even though no limit is displayed.
	// It guards against runaway abuse or billing loops, not legitimate use.
	ProSafetyCap int
}

// DefaultLimits returns the production limit table.
func DefaultLimits() Limits {
	return Limits{
		Anonymous:    5,
		Free:         20,
		ProSafetyCap: 1000,
	}
}

// enforced returns the limit actually applied to the identity.
func (l Limits) enforced(id Identity) int {
	switch v := id.(type) {
	case Authenticated:
		if v.Tier == TierPro {
			return l.ProSafetyCap
		}
		return l.Free
	default:
		return l.Anonymous
	}
}

// displayed returns the limit shown to the caller. Pro users see no limit,
// so the result is nil for them.
func (l Limits) displayed(id Identity) *int {
	switch v := id.(type) {
	case Authenticated:
		if v.Tier == TierPro {
			return nil
		}
		free := l.Free
		return &free
	default:
		anon := l.Anonymous
		return &anon
	}
}

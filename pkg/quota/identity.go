package quota

import "time"

// Tier is the service level of an authenticated caller.
type Tier string

const (
	// TierFree is the default tier for newly created profiles.
	TierFree Tier = "free"
	// TierPro has no displayed limit; only the safety cap applies.
	TierPro Tier = "pro"
)

// Identity classifies the caller for quota accounting. It is a closed set:
// Anonymous or Authenticated. Identities are re-derived from the request on
// every call and never cached server-side.
type Identity interface {
	// Key returns the ledger key for this identity.
	Key() string

	// TierName returns the tier label used for limits and metrics.
	TierName() string

	isIdentity()
}

// Anonymous identifies a caller tracked through a signed session token.
type Anonymous struct {
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func (a Anonymous) Key() string      { return "anon:" + a.SessionID }
func (a Anonymous) TierName() string { return "anonymous" }
func (a Anonymous) isIdentity()      {}

// Authenticated identifies a signed-in caller with a stored profile.
type Authenticated struct {
	UserID string
	Email  string
	Tier   Tier
}

func (a Authenticated) Key() string      { return a.UserID }
func (a Authenticated) TierName() string { return string(a.Tier) }
func (a Authenticated) isIdentity()      {}

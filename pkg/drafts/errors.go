package drafts

import (
	"errors"
	"fmt"

	"github.com/replyforge/replyforge/pkg/quota"
)

var (
	// ErrMissingAPIKey is returned when no completion provider is
	// configured. Server misconfiguration, not retriable by the caller.
	ErrMissingAPIKey = errors.New("completion provider credential is not configured")

	// ErrUpstreamTimeout is returned when the completion call exceeds its
	// time bound. Safe for the caller to retry, but the quota unit is
	// already consumed.
	ErrUpstreamTimeout = errors.New("completion provider timed out")

	// ErrUpstream is returned on a non-success provider response.
	ErrUpstream = errors.New("completion provider request failed")
)

// ValidationError describes a rejected request. Client-caused; no quota
// unit is consumed because validation runs before metering.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// QuotaExceededError carries the quota state of a rejected call.
type QuotaExceededError struct {
	Decision quota.Decision
}

func (e *QuotaExceededError) Error() string {
	if e.Decision.Limit != nil {
		return fmt.Sprintf("daily limit reached (%d/%d)", e.Decision.Used, *e.Decision.Limit)
	}
	return fmt.Sprintf("daily safety cap reached (%d)", e.Decision.Used)
}

func (e *QuotaExceededError) Unwrap() error {
	return quota.ErrQuotaExceeded
}

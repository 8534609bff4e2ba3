package quota

import "errors"

var (
	// ErrQuotaExceeded is returned when the daily limit is reached.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrProfileNotFound is returned when a user has no profile row.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrStorageUnavailable is returned when a required store is missing.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

package quota

import "time"

// Metrics defines the interface for tracking ledger operations.
type Metrics interface {
	// RecordDecision records a check-and-increment outcome per tier.
	RecordDecision(tier string, allowed bool)

	// RecordStorageOperation records the duration and status of a store call.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordDecision(tier string, allowed bool)                                   {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {}

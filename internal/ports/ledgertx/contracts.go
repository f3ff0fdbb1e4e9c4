// Package ledgertx declares the transaction-scoped repository surface used
// by operations that must mutate a delivery and its courier atomically.
package ledgertx

import (
	"context"
	"time"

	"courierconnect/internal/domain"
)

// Repository is the set of operations available inside one transaction.
// The conditional updates return false when the guard did not match, which
// callers resolve to a conflict.
type Repository interface {
	// AcceptPending assigns a courier to a delivery if and only if it is
	// still pending and unassigned. This is the single-winner arbitration
	// point for concurrent accept attempts.
	AcceptPending(ctx context.Context, trackingID string, courierID int64, at time.Time, entry domain.TimelineEntry) (bool, error)

	// IncrementCourierAssignment bumps the courier's active and total
	// delivery counters after a won acceptance.
	IncrementCourierAssignment(ctx context.Context, courierID int64) error

	// DecrementCourierActive releases one active slot when an assigned
	// delivery reaches a terminal state.
	DecrementCourierActive(ctx context.Context, courierID int64) error

	// SetTransfer records the payout transfer reference, guarded on the
	// delivery being paid and not yet transferred.
	SetTransfer(ctx context.Context, trackingID, transferID string) (bool, error)

	// AddCourierEarnings accumulates a courier's cumulative earnings.
	AddCourierEarnings(ctx context.Context, courierID int64, amount float64) error
}

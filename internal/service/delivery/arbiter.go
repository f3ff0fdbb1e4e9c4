package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/ports/ledgertx"
)

type counter interface {
	Inc()
}

type arbiterRepository interface {
	WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) error
}

// Arbiter settles concurrent accept attempts on one pending delivery.
// The decision point is a single conditional update: the row flips from
// pending-and-unassigned to accepted-by-this-courier, or it does not.
// There is no read-then-write window for a second acceptor to slip into.
type Arbiter struct {
	repo      arbiterRepository
	conflicts counter
}

// NewArbiter creates an Arbiter. The conflicts counter may be nil.
func NewArbiter(repo arbiterRepository, conflicts counter) *Arbiter {
	return &Arbiter{repo: repo, conflicts: conflicts}
}

// Accept attempts the assignment. Losing the race, or accepting a delivery
// that already moved on, both report apperr.ErrConflict.
func (a *Arbiter) Accept(ctx context.Context, trackingID string, courierID int64, at time.Time) error {
	err := a.repo.WithTx(ctx, func(tx ledgertx.Repository) error {
		won, err := tx.AcceptPending(ctx, trackingID, courierID, at, domain.TimelineEntry{
			Status:  domain.StatusAccepted,
			Message: "Courier assigned",
			At:      at,
		})
		if err != nil {
			return err
		}
		if !won {
			return fmt.Errorf("%w: delivery is no longer available", apperr.ErrConflict)
		}
		return tx.IncrementCourierAssignment(ctx, courierID)
	})
	if err != nil {
		if a.conflicts != nil && errors.Is(err, apperr.ErrConflict) {
			a.conflicts.Inc()
		}
		return err
	}
	return nil
}

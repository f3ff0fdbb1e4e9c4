package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
)

// CourierRepo persists couriers.
type CourierRepo struct {
	db *pgxpool.Pool
}

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo {
	return &CourierRepo{db: db}
}

// Create inserts a new courier profile.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO couriers (name, phone, payout_state, payout_account_ref)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `, c.Name, c.Phone, c.Payout.State, c.Payout.AccountRef).Scan(&c.ID)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrConflict
		}
		return fmt.Errorf("insert courier: %w", err)
	}
	return nil
}

// Get returns a courier by id, or nil when absent.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	var c domain.Courier
	err := r.db.QueryRow(ctx, `
        SELECT id, name, phone, payout_state, payout_account_ref,
               active_deliveries, total_deliveries, earnings
        FROM couriers
        WHERE id = $1
    `, id).Scan(
		&c.ID, &c.Name, &c.Phone, &c.Payout.State, &c.Payout.AccountRef,
		&c.ActiveDeliveries, &c.TotalDeliveries, &c.Earnings,
	)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return &c, nil
}

// SetPayoutDestination updates a courier's payout destination. Moving to
// the ready state requires a non-empty account reference; the repository
// trusts the caller validated that.
func (r *CourierRepo) SetPayoutDestination(ctx context.Context, id int64, dest domain.PayoutDestination) error {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET payout_state = $2, payout_account_ref = $3, updated_at = now()
        WHERE id = $1
    `, id, dest.State, dest.AccountRef)
	if err != nil {
		return fmt.Errorf("set payout destination courier %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// EarningsSummary is the aggregate a courier sees on their earnings page.
type EarningsSummary struct {
	Courier        domain.Courier
	DeliveredCount int
	InFlightCount  int
}

// Earnings returns the courier's profile together with delivery counts
// derived from the ledger.
func (r *CourierRepo) Earnings(ctx context.Context, id int64) (*EarningsSummary, error) {
	c, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	var s EarningsSummary
	s.Courier = *c
	err = r.db.QueryRow(ctx, `
        SELECT
            COUNT(*) FILTER (WHERE status = $2),
            COUNT(*) FILTER (WHERE status IN ($3, $4, $5))
        FROM deliveries
        WHERE courier_id = $1
    `, id,
		domain.StatusDelivered,
		domain.StatusAccepted, domain.StatusPickedUp, domain.StatusInTransit,
	).Scan(&s.DeliveredCount, &s.InFlightCount)
	if err != nil {
		return nil, fmt.Errorf("courier %d earnings counts: %w", id, err)
	}
	return &s, nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/ports/ledgertx"
)

// DeliveryRepo persists deliveries. Every mutation is a single conditional
// UPDATE whose WHERE clause asserts the expected prior state; a guard miss
// reports rowsAffected == 0 and never touches the row.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

const deliveryColumns = `
	id, tracking_id, status,
	sender_name, sender_phone, sender_address, sender_lat, sender_lng,
	receiver_name, receiver_phone, receiver_address, receiver_lat, receiver_lng,
	package_type, package_size, package_description, weight_kg,
	urgency, scheduled_pickup_at,
	distance_km, duration_minutes, distance_estimated,
	price_base, price_distance, price_urgency, price_size, price_schedule,
	price_minimum, minimum_applied, price_total, courier_earnings, platform_fee,
	courier_id,
	payment_status, checkout_session_id, payment_intent_id, capture_id, transfer_id,
	created_at, accepted_at, captured_at, completed_at, estimated_delivery_at,
	timeline`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var (
		d            domain.Delivery
		senderLat    *float64
		senderLng    *float64
		receiverLat  *float64
		receiverLng  *float64
		timelineJSON []byte
	)
	err := row.Scan(
		&d.ID, &d.TrackingID, &d.Status,
		&d.Sender.Name, &d.Sender.Phone, &d.Sender.Address, &senderLat, &senderLng,
		&d.Receiver.Name, &d.Receiver.Phone, &d.Receiver.Address, &receiverLat, &receiverLng,
		&d.PackageType, &d.PackageSize, &d.PackageDescription, &d.WeightKg,
		&d.Urgency, &d.ScheduledPickupAt,
		&d.DistanceKm, &d.DurationMinutes, &d.DistanceEstimated,
		&d.Price.Base, &d.Price.Distance, &d.Price.UrgencySurcharge, &d.Price.SizeSurcharge, &d.Price.ScheduleDiscount,
		&d.Price.MinimumAdjustment, &d.Price.MinimumApplied, &d.Price.Total, &d.Price.CourierEarnings, &d.Price.PlatformFee,
		&d.CourierID,
		&d.PaymentStatus, &d.Escrow.CheckoutSessionID, &d.Escrow.PaymentIntentID, &d.Escrow.CaptureID, &d.Escrow.TransferID,
		&d.CreatedAt, &d.AcceptedAt, &d.CapturedAt, &d.CompletedAt, &d.EstimatedDeliveryAt,
		&timelineJSON,
	)
	if err != nil {
		return nil, err
	}
	if senderLat != nil && senderLng != nil {
		d.Sender.Location = &domain.Location{Lat: *senderLat, Lng: *senderLng}
	}
	if receiverLat != nil && receiverLng != nil {
		d.Receiver.Location = &domain.Location{Lat: *receiverLat, Lng: *receiverLng}
	}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &d.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}
	return &d, nil
}

func entryJSON(entry domain.TimelineEntry) ([]byte, error) {
	// Appended as a one-element jsonb array via timeline || $n::jsonb.
	return json.Marshal([]domain.TimelineEntry{entry})
}

func locParts(l *domain.Location) (lat, lng *float64) {
	if l == nil {
		return nil, nil
	}
	return &l.Lat, &l.Lng
}

// Create inserts a new delivery. A tracking identifier collision surfaces
// as apperr.ErrConflict so the caller can regenerate and retry.
func (r *DeliveryRepo) Create(ctx context.Context, d *domain.Delivery) error {
	timelineJSON, err := json.Marshal(d.Timeline)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}
	senderLat, senderLng := locParts(d.Sender.Location)
	receiverLat, receiverLng := locParts(d.Receiver.Location)

	err = r.db.QueryRow(ctx, `
        INSERT INTO deliveries (
            tracking_id, status,
            sender_name, sender_phone, sender_address, sender_lat, sender_lng,
            receiver_name, receiver_phone, receiver_address, receiver_lat, receiver_lng,
            package_type, package_size, package_description, weight_kg,
            urgency, scheduled_pickup_at,
            distance_km, duration_minutes, distance_estimated,
            price_base, price_distance, price_urgency, price_size, price_schedule,
            price_minimum, minimum_applied, price_total, courier_earnings, platform_fee,
            payment_status, estimated_delivery_at, timeline
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
            $19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34
        )
        RETURNING id, created_at
    `,
		d.TrackingID, d.Status,
		d.Sender.Name, d.Sender.Phone, d.Sender.Address, senderLat, senderLng,
		d.Receiver.Name, d.Receiver.Phone, d.Receiver.Address, receiverLat, receiverLng,
		d.PackageType, d.PackageSize, d.PackageDescription, d.WeightKg,
		d.Urgency, d.ScheduledPickupAt,
		d.DistanceKm, d.DurationMinutes, d.DistanceEstimated,
		d.Price.Base, d.Price.Distance, d.Price.UrgencySurcharge, d.Price.SizeSurcharge, d.Price.ScheduleDiscount,
		d.Price.MinimumAdjustment, d.Price.MinimumApplied, d.Price.Total, d.Price.CourierEarnings, d.Price.PlatformFee,
		d.PaymentStatus, d.EstimatedDeliveryAt, timelineJSON,
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrConflict
		}
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

// GetByTrackingID returns a delivery by tracking identifier, or nil when absent.
func (r *DeliveryRepo) GetByTrackingID(ctx context.Context, trackingID string) (*domain.Delivery, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE tracking_id = $1`, trackingID)
	d, err := scanDelivery(row)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get delivery %q: %w", trackingID, err)
	}
	return d, nil
}

// List returns deliveries, newest first, optionally narrowed to one status.
func (r *DeliveryRepo) List(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error) {
	q := `SELECT ` + deliveryColumns + ` FROM deliveries`
	args := make([]any, 0, 2)
	if status != nil {
		args = append(args, *status)
		q += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

func collectDeliveries(rows pgx.Rows) ([]domain.Delivery, error) {
	var out []domain.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// AdvanceStatus moves a delivery along one legal edge of the state machine.
// The guard asserts both the expected current status and the assigned
// courier, so a stale or foreign requester can never advance the row.
func (r *DeliveryRepo) AdvanceStatus(ctx context.Context, trackingID string, courierID int64, from, to domain.Status, completedAt *time.Time, entry domain.TimelineEntry) (bool, error) {
	ej, err := entryJSON(entry)
	if err != nil {
		return false, err
	}
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET status = $4,
            completed_at = COALESCE($5, completed_at),
            timeline = timeline || $6::jsonb,
            updated_at = now()
        WHERE tracking_id = $1
          AND courier_id = $2
          AND status = $3
    `, trackingID, courierID, from, to, completedAt, ej)
	if err != nil {
		return false, fmt.Errorf("advance delivery %q %s->%s: %w", trackingID, from, to, err)
	}
	return ct.RowsAffected() > 0, nil
}

// CancelFrom cancels a delivery, guarded on the exact status the caller
// observed. Terminal states never match the guard.
func (r *DeliveryRepo) CancelFrom(ctx context.Context, trackingID string, from domain.Status, entry domain.TimelineEntry) (bool, error) {
	if from.Terminal() {
		return false, nil
	}
	ej, err := entryJSON(entry)
	if err != nil {
		return false, err
	}
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET status = $3,
            timeline = timeline || $4::jsonb,
            updated_at = now()
        WHERE tracking_id = $1
          AND status = $2
    `, trackingID, from, domain.StatusCancelled, ej)
	if err != nil {
		return false, fmt.Errorf("cancel delivery %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// AppendTimeline records an audit entry outside of a status transition,
// e.g. a failed capture attempt.
func (r *DeliveryRepo) AppendTimeline(ctx context.Context, trackingID string, entry domain.TimelineEntry) error {
	ej, err := entryJSON(entry)
	if err != nil {
		return err
	}
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET timeline = timeline || $2::jsonb, updated_at = now()
        WHERE tracking_id = $1
    `, trackingID, ej)
	if err != nil {
		return fmt.Errorf("append timeline %q: %w", trackingID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetCheckoutRefs stores the checkout session and payment intent references
// created for an unpaid delivery.
func (r *DeliveryRepo) SetCheckoutRefs(ctx context.Context, trackingID, sessionID, intentID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET checkout_session_id = $2, payment_intent_id = $3, updated_at = now()
        WHERE tracking_id = $1
          AND payment_status = $4
    `, trackingID, sessionID, intentID, domain.PaymentUnpaid)
	if err != nil {
		return false, fmt.Errorf("set checkout refs %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkAuthorized flips an unpaid delivery to authorized, but only while the
// stored checkout session still matches the event's session. A stale
// session (superseded checkout) does not match and is ignored.
func (r *DeliveryRepo) MarkAuthorized(ctx context.Context, trackingID, sessionID, intentID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET payment_status = $4,
            payment_intent_id = CASE WHEN $3 <> '' THEN $3 ELSE payment_intent_id END,
            updated_at = now()
        WHERE tracking_id = $1
          AND checkout_session_id = $2
          AND payment_status = $5
    `, trackingID, sessionID, intentID, domain.PaymentAuthorized, domain.PaymentUnpaid)
	if err != nil {
		return false, fmt.Errorf("mark authorized %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ResetExpiredSession clears an expired checkout session, but only while
// the delivery is still unpaid and still references that session; an
// authorization that won an out-of-order race is left untouched.
func (r *DeliveryRepo) ResetExpiredSession(ctx context.Context, trackingID, sessionID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET checkout_session_id = '', payment_intent_id = '', updated_at = now()
        WHERE tracking_id = $1
          AND checkout_session_id = $2
          AND payment_status = $3
    `, trackingID, sessionID, domain.PaymentUnpaid)
	if err != nil {
		return false, fmt.Errorf("reset expired session %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkCaptured commits the financial point of no return: authorized and
// delivered becomes paid, with the processor's capture reference recorded.
func (r *DeliveryRepo) MarkCaptured(ctx context.Context, trackingID, captureID string, at time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET payment_status = $3, capture_id = $2, captured_at = $4, updated_at = now()
        WHERE tracking_id = $1
          AND status = $5
          AND payment_status = $6
          AND payment_intent_id <> ''
    `, trackingID, captureID, domain.PaymentPaid, at, domain.StatusDelivered, domain.PaymentAuthorized)
	if err != nil {
		return false, fmt.Errorf("mark captured %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// MarkRefunded flips an authorized or paid delivery to refunded.
func (r *DeliveryRepo) MarkRefunded(ctx context.Context, trackingID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE deliveries
        SET payment_status = $2, updated_at = now()
        WHERE tracking_id = $1
          AND payment_status = ANY($3)
    `, trackingID, domain.PaymentRefunded, []domain.PaymentStatus{domain.PaymentAuthorized, domain.PaymentPaid})
	if err != nil {
		return false, fmt.Errorf("mark refunded %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// ListEscrowCandidates returns deliveries with unfinished escrow work:
// pending captures, missing payouts and refunds owed after cancellation.
func (r *DeliveryRepo) ListEscrowCandidates(ctx context.Context, limit int) ([]domain.Delivery, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+deliveryColumns+`
        FROM deliveries
        WHERE (status = $1 AND payment_status = $2)
           OR (payment_status = $3 AND transfer_id = '' AND courier_id IS NOT NULL)
           OR (status = $4 AND payment_status = ANY($5))
        ORDER BY updated_at ASC
        LIMIT $6
    `,
		domain.StatusDelivered, domain.PaymentAuthorized,
		domain.PaymentPaid,
		domain.StatusCancelled, []domain.PaymentStatus{domain.PaymentAuthorized, domain.PaymentPaid},
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list escrow candidates: %w", err)
	}
	defer rows.Close()

	return collectDeliveries(rows)
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	wrapped := &TxRepo{tx: tx}

	if err := fn(wrapped); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// TxRepo is the transaction-scoped repository.
type TxRepo struct {
	tx pgx.Tx
}

// AcceptPending - single-winner conditional assignment. The guard demands
// status = pending AND courier_id IS NULL in one indivisible update; of N
// concurrent acceptors exactly one sees rowsAffected = 1.
func (r *TxRepo) AcceptPending(ctx context.Context, trackingID string, courierID int64, at time.Time, entry domain.TimelineEntry) (bool, error) {
	ej, err := entryJSON(entry)
	if err != nil {
		return false, err
	}
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET status = $3,
            courier_id = $2,
            accepted_at = $4,
            timeline = timeline || $5::jsonb,
            updated_at = now()
        WHERE tracking_id = $1
          AND status = $6
          AND courier_id IS NULL
    `, trackingID, courierID, domain.StatusAccepted, at, ej, domain.StatusPending)
	if err != nil {
		return false, fmt.Errorf("accept delivery %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// IncrementCourierAssignment - bump active and total counters on acceptance.
func (r *TxRepo) IncrementCourierAssignment(ctx context.Context, courierID int64) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET active_deliveries = active_deliveries + 1,
            total_deliveries = total_deliveries + 1,
            updated_at = now()
        WHERE id = $1
    `, courierID)
	if err != nil {
		return fmt.Errorf("increment courier %d: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DecrementCourierActive - release one active slot, never below zero.
func (r *TxRepo) DecrementCourierActive(ctx context.Context, courierID int64) error {
	_, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET active_deliveries = GREATEST(active_deliveries - 1, 0),
            updated_at = now()
        WHERE id = $1
    `, courierID)
	if err != nil {
		return fmt.Errorf("decrement courier %d: %w", courierID, err)
	}
	return nil
}

// SetTransfer records a payout transfer reference exactly once per delivery.
func (r *TxRepo) SetTransfer(ctx context.Context, trackingID, transferID string) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE deliveries
        SET transfer_id = $2, updated_at = now()
        WHERE tracking_id = $1
          AND payment_status = $3
          AND transfer_id = ''
    `, trackingID, transferID, domain.PaymentPaid)
	if err != nil {
		return false, fmt.Errorf("set transfer %q: %w", trackingID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// AddCourierEarnings accumulates the courier's cumulative earnings.
func (r *TxRepo) AddCourierEarnings(ctx context.Context, courierID int64, amount float64) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET earnings = earnings + $2, updated_at = now()
        WHERE id = $1
    `, courierID, amount)
	if err != nil {
		return fmt.Errorf("add earnings courier %d: %w", courierID, err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

var _ ledgertx.Repository = (*TxRepo)(nil)

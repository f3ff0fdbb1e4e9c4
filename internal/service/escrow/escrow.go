// Package escrow coordinates the money side of a delivery: the customer's
// funds are held at creation time, captured when the package is delivered
// and either paid out to the courier or returned to the customer.
//
// Capture is the financial point of no return. It is committed to the
// ledger before any payout attempt, and a failed payout is retried later
// rather than unwinding the capture.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/gateway/payment"
	"courierconnect/internal/logx"
	"courierconnect/internal/ports/ledgertx"
)

// Config carries the checkout parameters.
type Config struct {
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Coordinator drives the escrow lifecycle of a delivery.
type Coordinator struct {
	deliveries deliveryRepository
	couriers   courierRepository
	gateway    paymentGateway
	cfg        Config

	// flight collapses concurrent capture or refund attempts for the
	// same delivery into one gateway call.
	flight singleflight.Group

	captureFailures counter
	payoutFailures  counter

	logger logx.Logger
	now    func() time.Time
}

// NewCoordinator creates a Coordinator. The failure counters may be nil.
func NewCoordinator(
	deliveries deliveryRepository,
	couriers courierRepository,
	gateway paymentGateway,
	cfg Config,
	captureFailures, payoutFailures counter,
	logger logx.Logger,
) *Coordinator {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &Coordinator{
		deliveries:      deliveries,
		couriers:        couriers,
		gateway:         gateway,
		cfg:             cfg,
		captureFailures: captureFailures,
		payoutFailures:  payoutFailures,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Checkout is the created payment session handed back to the customer.
type Checkout struct {
	SessionID string
	URL       string
}

// CreateCheckout opens a hold-only payment session for an unpaid delivery.
// Calling it again before the first session resolves supersedes the stored
// session reference; only the stored session can later authorize the row.
func (c *Coordinator) CreateCheckout(ctx context.Context, trackingID string) (*Checkout, error) {
	d, err := c.mustGet(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: delivery is %s", apperr.ErrConflict, d.Status)
	}
	if d.PaymentStatus != domain.PaymentUnpaid {
		return nil, fmt.Errorf("%w: payment already %s", apperr.ErrConflict, d.PaymentStatus)
	}

	res, err := c.gateway.CreateCheckout(ctx, payment.CheckoutRequest{
		TrackingID:  d.TrackingID,
		AttemptRef:  uuid.NewString(),
		AmountCents: payment.Cents(d.Price.Total),
		Currency:    c.cfg.Currency,
		Description: "Delivery " + d.TrackingID,
		SuccessURL:  c.cfg.SuccessURL,
		CancelURL:   c.cfg.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	ok, err := c.deliveries.SetCheckoutRefs(ctx, trackingID, res.SessionID, "")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payment state changed concurrently", apperr.ErrConflict)
	}

	c.logger.Info("checkout session created",
		logx.String("tracking_id", trackingID),
		logx.String("session_id", res.SessionID),
	)
	return &Checkout{SessionID: res.SessionID, URL: res.URL}, nil
}

// HandleSessionCompleted authorizes the delivery's payment from a completed
// checkout session. The update is guarded on the stored session reference,
// so a superseded or replayed session changes nothing.
func (c *Coordinator) HandleSessionCompleted(ctx context.Context, trackingID, sessionID, intentID string) error {
	ok, err := c.deliveries.MarkAuthorized(ctx, trackingID, sessionID, intentID)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Info("ignoring stale or duplicate session completion",
			logx.String("tracking_id", trackingID),
			logx.String("session_id", sessionID),
		)
		return nil
	}

	// The webhook can land after a courier already accepted or picked the
	// delivery up; the note carries whatever status the delivery is in.
	status := domain.StatusPending
	if d, err := c.deliveries.GetByTrackingID(ctx, trackingID); err == nil && d != nil {
		status = d.Status
	}
	if err := c.deliveries.AppendTimeline(ctx, trackingID, domain.TimelineEntry{
		Status:  status,
		Message: "Payment authorized",
		At:      c.now(),
	}); err != nil {
		c.logger.Warn("failed to record authorization note", logx.Err(err))
	}

	c.logger.Info("payment authorized",
		logx.String("event", "payment_authorized"),
		logx.String("tracking_id", trackingID),
	)
	return nil
}

// HandleSessionExpired clears an expired session so the customer can open
// a fresh checkout. An authorization that raced ahead stays untouched.
func (c *Coordinator) HandleSessionExpired(ctx context.Context, trackingID, sessionID string) error {
	ok, err := c.deliveries.ResetExpiredSession(ctx, trackingID, sessionID)
	if err != nil {
		return err
	}
	if ok {
		c.logger.Info("checkout session expired, references cleared",
			logx.String("tracking_id", trackingID),
			logx.String("session_id", sessionID),
		)
	}
	return nil
}

// HandlePaymentFailed records a failed authorization attempt. The delivery
// stays unpaid; the customer simply retries checkout.
func (c *Coordinator) HandlePaymentFailed(ctx context.Context, trackingID string) error {
	c.logger.Warn("payment attempt failed",
		logx.String("tracking_id", trackingID),
	)
	err := c.deliveries.AppendTimeline(ctx, trackingID, domain.TimelineEntry{
		Status:  domain.StatusPending,
		Message: "Payment attempt failed",
		At:      c.now(),
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return nil
	}
	return err
}

// CaptureAndPayout captures the held funds of a delivered delivery and
// pays the courier's share out. Safe to call repeatedly: a delivery that
// is already paid skips straight to the payout retry, and a delivery with
// its transfer done is a no-op.
func (c *Coordinator) CaptureAndPayout(ctx context.Context, trackingID string) error {
	_, err, _ := c.flight.Do("capture:"+trackingID, func() (any, error) {
		return nil, c.captureAndPayout(ctx, trackingID)
	})
	return err
}

func (c *Coordinator) captureAndPayout(ctx context.Context, trackingID string) error {
	d, err := c.mustGet(ctx, trackingID)
	if err != nil {
		return err
	}
	if d.Status != domain.StatusDelivered {
		return fmt.Errorf("%w: capture requires a delivered delivery, got %s", apperr.ErrConflict, d.Status)
	}

	switch d.PaymentStatus {
	case domain.PaymentAuthorized:
		if d.Escrow.PaymentIntentID == "" {
			return fmt.Errorf("%w: no payment intent on record", apperr.ErrConflict)
		}
		captureID, err := c.gateway.Capture(ctx, d.Escrow.PaymentIntentID)
		if err != nil {
			if c.captureFailures != nil {
				c.captureFailures.Inc()
			}
			return fmt.Errorf("capture %s: %w", trackingID, err)
		}

		ok, err := c.deliveries.MarkCaptured(ctx, trackingID, captureID, c.now())
		if err != nil {
			return err
		}
		if !ok {
			// Another worker committed the capture between our read and
			// write; the gateway call was idempotent, so nothing was
			// double-charged. Fall through to the payout.
			c.logger.Info("capture already committed elsewhere",
				logx.String("tracking_id", trackingID),
			)
		} else {
			c.logger.Info("payment captured",
				logx.String("event", "payment_captured"),
				logx.String("tracking_id", trackingID),
				logx.String("capture_id", captureID),
			)
			if err := c.deliveries.AppendTimeline(ctx, trackingID, domain.TimelineEntry{
				Status:  domain.StatusDelivered,
				Message: "Payment captured",
				At:      c.now(),
			}); err != nil {
				c.logger.Warn("failed to record capture note", logx.Err(err))
			}
		}

	case domain.PaymentPaid:
		if d.Escrow.TransferID != "" {
			return nil
		}
		// Captured earlier, payout still owed.

	default:
		return fmt.Errorf("%w: capture requires an authorized payment, got %s", apperr.ErrConflict, d.PaymentStatus)
	}

	c.payout(ctx, d)
	return nil
}

// payout transfers the courier's share. Failures are logged and left for
// the retry sweep; the committed capture is never unwound.
func (c *Coordinator) payout(ctx context.Context, d *domain.Delivery) {
	if d.CourierID == nil {
		c.logger.Error("paid delivery has no courier to pay",
			logx.String("tracking_id", d.TrackingID),
		)
		return
	}

	courier, err := c.couriers.Get(ctx, *d.CourierID)
	if err != nil || courier == nil {
		if c.payoutFailures != nil {
			c.payoutFailures.Inc()
		}
		c.logger.Error("payout courier lookup failed",
			logx.String("tracking_id", d.TrackingID),
			logx.Err(err),
		)
		return
	}
	if !courier.Payout.Ready() {
		c.logger.Warn("payout deferred until courier completes onboarding",
			logx.String("tracking_id", d.TrackingID),
			logx.Int64("courier_id", courier.ID),
		)
		return
	}

	transferID, err := c.gateway.Transfer(ctx, payment.TransferRequest{
		TrackingID:  d.TrackingID,
		AmountCents: payment.Cents(d.Price.CourierEarnings),
		Currency:    c.cfg.Currency,
		AccountRef:  courier.Payout.AccountRef,
	})
	if err != nil {
		if c.payoutFailures != nil {
			c.payoutFailures.Inc()
		}
		c.logger.Error("courier payout failed, will retry",
			logx.String("tracking_id", d.TrackingID),
			logx.Int64("courier_id", courier.ID),
			logx.Err(err),
		)
		return
	}

	err = c.deliveries.WithTx(ctx, func(tx ledgertx.Repository) error {
		recorded, err := tx.SetTransfer(ctx, d.TrackingID, transferID)
		if err != nil {
			return err
		}
		if !recorded {
			// A concurrent sweep recorded its transfer first; the
			// gateway idempotency key guarantees both saw the same one.
			return nil
		}
		return tx.AddCourierEarnings(ctx, courier.ID, d.Price.CourierEarnings)
	})
	if err != nil {
		if c.payoutFailures != nil {
			c.payoutFailures.Inc()
		}
		c.logger.Error("failed to record courier payout",
			logx.String("tracking_id", d.TrackingID),
			logx.String("transfer_id", transferID),
			logx.Err(err),
		)
		return
	}

	c.logger.Info("courier paid out",
		logx.String("event", "courier_paid"),
		logx.String("tracking_id", d.TrackingID),
		logx.Int64("courier_id", courier.ID),
		logx.Float64("amount", d.Price.CourierEarnings),
	)
}

// Refund returns the customer's money after a cancellation: an
// uncaptured hold is released, a captured charge refunded. Refunding a
// delivery that was never paid, or one already refunded, is a no-op.
func (c *Coordinator) Refund(ctx context.Context, trackingID string) error {
	_, err, _ := c.flight.Do("refund:"+trackingID, func() (any, error) {
		return nil, c.refund(ctx, trackingID)
	})
	return err
}

func (c *Coordinator) refund(ctx context.Context, trackingID string) error {
	d, err := c.mustGet(ctx, trackingID)
	if err != nil {
		return err
	}

	switch d.PaymentStatus {
	case domain.PaymentAuthorized, domain.PaymentPaid:
	default:
		return nil
	}
	if d.Escrow.PaymentIntentID == "" {
		return fmt.Errorf("%w: no payment intent on record", apperr.ErrConflict)
	}

	err = c.gateway.Release(ctx, payment.ReleaseRequest{
		IntentID: d.Escrow.PaymentIntentID,
		Captured: d.PaymentStatus == domain.PaymentPaid,
	})
	if err != nil {
		return fmt.Errorf("refund %s: %w", trackingID, err)
	}

	ok, err := c.deliveries.MarkRefunded(ctx, trackingID)
	if err != nil {
		return err
	}
	if ok {
		if err := c.deliveries.AppendTimeline(ctx, trackingID, domain.TimelineEntry{
			Status:  d.Status,
			Message: "Payment refunded",
			At:      c.now(),
		}); err != nil {
			c.logger.Warn("failed to record refund note", logx.Err(err))
		}
		c.logger.Info("payment refunded",
			logx.String("event", "payment_refunded"),
			logx.String("tracking_id", trackingID),
		)
	}
	return nil
}

func (c *Coordinator) mustGet(ctx context.Context, trackingID string) (*domain.Delivery, error) {
	d, err := c.deliveries.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: delivery %s", apperr.ErrNotFound, trackingID)
	}
	return d, nil
}

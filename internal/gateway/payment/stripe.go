// Package payment wraps the Stripe API behind the escrow operations the
// core needs: authorize via checkout, capture on delivery, transfer to the
// courier and release back to the customer.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"courierconnect/internal/apperr"
)

// CheckoutRequest describes the funds to place on hold for one delivery.
// AttemptRef distinguishes checkout attempts of the same delivery: without
// it, a retry after an expired session would be answered from the
// processor's idempotency cache with the dead session.
type CheckoutRequest struct {
	TrackingID  string
	AttemptRef  string
	AmountCents int64
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string
}

// CheckoutResult is the created checkout session. The payment intent
// reference becomes known when the session completes.
type CheckoutResult struct {
	SessionID string
	URL       string
}

// TransferRequest moves captured funds to a courier's connected account.
type TransferRequest struct {
	TrackingID  string
	AmountCents int64
	Currency    string
	AccountRef  string
}

// ReleaseRequest returns held or captured funds to the customer. Captured
// selects a refund of the charge over a cancellation of the hold.
type ReleaseRequest struct {
	IntentID string
	Captured bool
}

// StripeGateway implements the escrow gateway against Stripe.
type StripeGateway struct {
	client *client.API
}

// NewStripeGateway creates a new StripeGateway. It returns nil when no
// secret key is configured.
func NewStripeGateway(apiKey string) *StripeGateway {
	if apiKey == "" {
		return nil
	}
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeGateway{client: sc}
}

// Cents converts a rounded decimal amount to processor minor units.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateCheckout opens a manual-capture checkout session. The customer's
// card is authorized when the session completes, but nothing is charged
// until Capture.
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: non-positive amount", apperr.ErrInvalid)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Description),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
			Metadata:      map[string]string{"trackingId": req.TrackingID},
		},
		Metadata: map[string]string{"trackingId": req.TrackingID},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("checkout-" + req.TrackingID + "-" + req.AttemptRef)

	sess, err := g.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, mapStripeError(err)
	}
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// Capture charges the authorized hold in full. This is the gateway side of
// the financial point of no return; the caller commits the result before
// any payout.
func (g *StripeGateway) Capture(ctx context.Context, intentID string) (string, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("capture-" + intentID)

	pi, err := g.client.PaymentIntents.Capture(intentID, params)
	if err != nil {
		return "", mapStripeError(err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("capture %s: unexpected status %s", intentID, pi.Status)
	}
	if pi.LatestCharge != nil {
		return pi.LatestCharge.ID, nil
	}
	return pi.ID, nil
}

// Transfer pays the courier's share to their connected account.
func (g *StripeGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.AccountRef == "" {
		return "", fmt.Errorf("%w: no payout destination", apperr.ErrInvalid)
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.AccountRef),
		Metadata:    map[string]string{"trackingId": req.TrackingID},
	}
	params.Context = ctx
	params.IdempotencyKey = stripe.String("transfer-" + req.TrackingID)

	tr, err := g.client.Transfers.New(params)
	if err != nil {
		return "", mapStripeError(err)
	}
	return tr.ID, nil
}

// Release returns the customer's money: an uncaptured hold is cancelled,
// a captured charge is refunded.
func (g *StripeGateway) Release(ctx context.Context, req ReleaseRequest) error {
	if req.Captured {
		params := &stripe.RefundParams{
			PaymentIntent: stripe.String(req.IntentID),
		}
		params.Context = ctx
		params.IdempotencyKey = stripe.String("refund-" + req.IntentID)
		if _, err := g.client.Refunds.New(params); err != nil {
			return mapStripeError(err)
		}
		return nil
	}

	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if _, err := g.client.PaymentIntents.Cancel(req.IntentID, params); err != nil {
		return mapStripeError(err)
	}
	return nil
}

// mapStripeError keeps stripe-go types out of the service layer: provider
// outages become apperr.ErrUnavailable, everything else stays a wrapped
// gateway error.
func mapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("%w: stripe: %s", apperr.ErrUnavailable, stripeErr.Code)
		}
		switch stripeErr.Code {
		case stripe.ErrorCodeCardDeclined:
			return fmt.Errorf("card was declined: %s", stripeErr.Msg)
		case stripe.ErrorCodeExpiredCard:
			return errors.New("card has expired")
		case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout:
			return fmt.Errorf("%w: stripe: %s", apperr.ErrUnavailable, stripeErr.Code)
		}
		return fmt.Errorf("stripe: %s: %s", stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("stripe request: %w", err)
}

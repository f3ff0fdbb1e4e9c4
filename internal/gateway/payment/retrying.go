package payment

import (
	"context"
	"time"

	"courierconnect/internal/logx"
)

type gateway interface {
	CreateCheckout(context.Context, CheckoutRequest) (*CheckoutResult, error)
	Capture(context.Context, string) (string, error)
	Transfer(context.Context, TransferRequest) (string, error)
	Release(context.Context, ReleaseRequest) error
}

type counter interface {
	Inc()
}

// RetryConfig bounds the retry loop of RetryingGateway.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingGateway decorates a gateway with bounded exponential backoff on
// retryable failures. Stripe-side idempotency keys make the repeated calls
// safe.
type RetryingGateway struct {
	next    gateway
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingGateway creates a RetryingGateway; a nil next yields nil.
func NewRetryingGateway(next gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg}
}

// CreateCheckout calls the wrapped gateway with retries.
func (g *RetryingGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	var (
		res     *CheckoutResult
		lastErr error
	)
	lastErr = g.retry(ctx, "CreateCheckout", func() error {
		var err error
		res, err = g.next.CreateCheckout(ctx, req)
		return err
	})
	if lastErr != nil {
		return nil, lastErr
	}
	return res, nil
}

// Capture calls the wrapped gateway with retries.
func (g *RetryingGateway) Capture(ctx context.Context, intentID string) (string, error) {
	var captureID string
	err := g.retry(ctx, "Capture", func() error {
		var err error
		captureID, err = g.next.Capture(ctx, intentID)
		return err
	})
	return captureID, err
}

// Transfer calls the wrapped gateway with retries.
func (g *RetryingGateway) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	var transferID string
	err := g.retry(ctx, "Transfer", func() error {
		var err error
		transferID, err = g.next.Transfer(ctx, req)
		return err
	})
	return transferID, err
}

// Release calls the wrapped gateway with retries.
func (g *RetryingGateway) Release(ctx context.Context, req ReleaseRequest) error {
	return g.retry(ctx, "Release", func() error {
		return g.next.Release(ctx, req)
	})
}

func (g *RetryingGateway) retry(ctx context.Context, method string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("payment gateway retry",
			logx.String("method", method),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

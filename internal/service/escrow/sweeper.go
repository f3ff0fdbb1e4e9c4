package escrow

import (
	"context"
	"time"

	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
)

// Sweeper periodically retries unfinished escrow work: captures that
// failed after delivery, payouts still owed and refunds still owed after
// cancellation. Every action it triggers is idempotent, so overlapping
// with the request path is harmless.
type Sweeper struct {
	deliveries deliveryRepository
	coord      *Coordinator
	interval   time.Duration
	batch      int
	logger     logx.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(deliveries deliveryRepository, coord *Coordinator, interval time.Duration, batch int, logger logx.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	return &Sweeper{
		deliveries: deliveries,
		coord:      coord,
		interval:   interval,
		batch:      batch,
		logger:     logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over the outstanding escrow work.
func (s *Sweeper) Sweep(ctx context.Context) {
	candidates, err := s.deliveries.ListEscrowCandidates(ctx, s.batch)
	if err != nil {
		s.logger.Error("escrow sweep query failed", logx.Err(err))
		return
	}

	for i := range candidates {
		d := &candidates[i]
		if ctx.Err() != nil {
			return
		}

		var opErr error
		switch {
		case d.Status == domain.StatusCancelled:
			opErr = s.coord.Refund(ctx, d.TrackingID)
		case d.Status == domain.StatusDelivered:
			opErr = s.coord.CaptureAndPayout(ctx, d.TrackingID)
		default:
			continue
		}

		if opErr != nil {
			s.logger.Warn("escrow sweep item failed",
				logx.String("tracking_id", d.TrackingID),
				logx.String("status", string(d.Status)),
				logx.String("payment_status", string(d.PaymentStatus)),
				logx.Err(opErr),
			)
		}
	}
}

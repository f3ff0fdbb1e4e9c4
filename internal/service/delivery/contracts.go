package delivery

import (
	"context"
	"time"

	"courierconnect/internal/domain"
	"courierconnect/internal/ports/ledgertx"
	"courierconnect/internal/routing"
)

type deliveryRepository interface {
	Create(ctx context.Context, d *domain.Delivery) error
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.Delivery, error)
	List(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error)
	AdvanceStatus(ctx context.Context, trackingID string, courierID int64, from, to domain.Status, completedAt *time.Time, entry domain.TimelineEntry) (bool, error)
	CancelFrom(ctx context.Context, trackingID string, from domain.Status, entry domain.TimelineEntry) (bool, error)
	AppendTimeline(ctx context.Context, trackingID string, entry domain.TimelineEntry) error
	WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) error
}

type courierRepository interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

type priceEngine interface {
	Compute(distanceKm float64, urgency domain.Urgency, size domain.PackageSize, scheduledPickup *time.Time) (domain.PriceBreakdown, error)
	EstimatedDeliveryTime(distanceKm float64, urgency domain.Urgency, scheduled *time.Time) time.Time
}

type routeResolver interface {
	Resolve(ctx context.Context, origin, dest *domain.Location) (routing.Route, error)
}

// escrowTrigger is the escrow coordinator as seen from the lifecycle side.
// Both calls are consequences of a committed transition: their failure is
// recorded and retried later, never propagated into the transition.
type escrowTrigger interface {
	CaptureAndPayout(ctx context.Context, trackingID string) error
	Refund(ctx context.Context, trackingID string) error
}

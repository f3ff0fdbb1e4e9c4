package escrow

import (
	"context"
	"time"

	"courierconnect/internal/domain"
	"courierconnect/internal/gateway/payment"
	"courierconnect/internal/ports/ledgertx"
)

type deliveryRepository interface {
	GetByTrackingID(ctx context.Context, trackingID string) (*domain.Delivery, error)
	SetCheckoutRefs(ctx context.Context, trackingID, sessionID, intentID string) (bool, error)
	MarkAuthorized(ctx context.Context, trackingID, sessionID, intentID string) (bool, error)
	ResetExpiredSession(ctx context.Context, trackingID, sessionID string) (bool, error)
	MarkCaptured(ctx context.Context, trackingID, captureID string, at time.Time) (bool, error)
	MarkRefunded(ctx context.Context, trackingID string) (bool, error)
	AppendTimeline(ctx context.Context, trackingID string, entry domain.TimelineEntry) error
	ListEscrowCandidates(ctx context.Context, limit int) ([]domain.Delivery, error)
	WithTx(ctx context.Context, fn func(tx ledgertx.Repository) error) error
}

type courierRepository interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
}

type paymentGateway interface {
	CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResult, error)
	Capture(ctx context.Context, intentID string) (string, error)
	Transfer(ctx context.Context, req payment.TransferRequest) (string, error)
	Release(ctx context.Context, req payment.ReleaseRequest) error
}

type counter interface {
	Inc()
}

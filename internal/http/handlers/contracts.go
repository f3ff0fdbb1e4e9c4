package handlers

import (
	"context"

	"courierconnect/internal/domain"
	"courierconnect/internal/repository"
	"courierconnect/internal/service/courier"
	"courierconnect/internal/service/delivery"
	"courierconnect/internal/service/escrow"
)

type deliveryUsecase interface {
	Create(ctx context.Context, req delivery.CreateRequest) (*domain.Delivery, error)
	Accept(ctx context.Context, id domain.Identity, trackingID string) (*domain.Delivery, error)
	Advance(ctx context.Context, id domain.Identity, trackingID string, target domain.Status) (*domain.Delivery, error)
	Cancel(ctx context.Context, id domain.Identity, trackingID, reason string) (*domain.Delivery, error)
	Track(ctx context.Context, trackingID string) (*domain.Delivery, error)
	List(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error)
	Available(ctx context.Context, limit int) ([]domain.Delivery, error)
	Quote(ctx context.Context, req delivery.QuoteRequest) (*delivery.Quote, error)
}

// NewDeliveryUsecase wires a delivery Service into a deliveryUsecase.
func NewDeliveryUsecase(svc *delivery.Service) deliveryUsecase {
	return svc
}

type escrowUsecase interface {
	CreateCheckout(ctx context.Context, trackingID string) (*escrow.Checkout, error)
	HandleSessionCompleted(ctx context.Context, trackingID, sessionID, intentID string) error
	HandleSessionExpired(ctx context.Context, trackingID, sessionID string) error
	HandlePaymentFailed(ctx context.Context, trackingID string) error
	CaptureAndPayout(ctx context.Context, trackingID string) error
	Refund(ctx context.Context, trackingID string) error
}

type courierUsecase interface {
	Register(ctx context.Context, name, phone string) (*domain.Courier, error)
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	SetPayoutDestination(ctx context.Context, id domain.Identity, courierID int64, dest domain.PayoutDestination) error
	Earnings(ctx context.Context, id domain.Identity, courierID int64) (*repository.EarningsSummary, error)
}

// NewCourierUsecase wires a courier Service into a courierUsecase.
func NewCourierUsecase(svc *courier.Service) courierUsecase {
	return svc
}

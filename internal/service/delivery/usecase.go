// Package delivery implements the delivery lifecycle: creation with a
// frozen price quote, single-winner courier acceptance, guarded status
// progression and cancellation. Escrow follow-ups and notifications are
// consequences of committed transitions, never part of them.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
	"courierconnect/internal/notify"
	"courierconnect/internal/ports/ledgertx"
	"courierconnect/internal/routing"
)

// trackingIDAttempts bounds the regenerate-and-retry loop on a tracking
// identifier collision at insert.
const trackingIDAttempts = 5

// Service orchestrates the delivery lifecycle.
type Service struct {
	repo             deliveryRepository
	couriers         courierRepository
	pricer           priceEngine
	resolver         routeResolver
	arbiter          *Arbiter
	escrow           escrowTrigger
	dispatcher       notify.Dispatcher
	operationTimeout time.Duration
	logger           logx.Logger
	now              func() time.Time
}

// NewService creates a delivery Service.
func NewService(
	repo deliveryRepository,
	couriers courierRepository,
	pricer priceEngine,
	resolver routeResolver,
	arbiter *Arbiter,
	escrow escrowTrigger,
	dispatcher notify.Dispatcher,
	timeout time.Duration,
	logger logx.Logger,
) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if dispatcher == nil {
		dispatcher = notify.Nop()
	}
	return &Service{
		repo:             repo,
		couriers:         couriers,
		pricer:           pricer,
		resolver:         resolver,
		arbiter:          arbiter,
		escrow:           escrow,
		dispatcher:       dispatcher,
		operationTimeout: timeout,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// CreateRequest carries the validated-at-the-edge fields of a new delivery.
type CreateRequest struct {
	Sender   domain.Party
	Receiver domain.Party

	PackageType        string
	PackageSize        domain.PackageSize
	PackageDescription string
	WeightKg           *float64

	Urgency           domain.Urgency
	ScheduledPickupAt *time.Time

	// DistanceKm is honored only when either party has no coordinates.
	DistanceKm float64
}

func (s *Service) validateCreate(req *CreateRequest) error {
	for _, p := range []struct {
		who   string
		party domain.Party
	}{{"sender", req.Sender}, {"receiver", req.Receiver}} {
		if strings.TrimSpace(p.party.Name) == "" || strings.TrimSpace(p.party.Address) == "" {
			return fmt.Errorf("%w: %s name and address are required", apperr.ErrInvalid, p.who)
		}
	}
	if !req.PackageSize.Valid() {
		return fmt.Errorf("%w: unknown package size %q", apperr.ErrInvalid, req.PackageSize)
	}
	if !req.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", apperr.ErrInvalid, req.Urgency)
	}
	if req.WeightKg != nil && *req.WeightKg <= 0 {
		return fmt.Errorf("%w: weight must be positive", apperr.ErrInvalid)
	}
	if req.Urgency == domain.UrgencyScheduled {
		if req.ScheduledPickupAt == nil {
			return fmt.Errorf("%w: scheduled delivery requires a pickup time", apperr.ErrInvalid)
		}
		if !req.ScheduledPickupAt.After(s.now()) {
			return fmt.Errorf("%w: scheduled pickup must be in the future", apperr.ErrInvalid)
		}
	}
	return nil
}

// Create prices and registers a new delivery in the pending state. The
// returned quote is frozen: later pricing changes never touch this row.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*domain.Delivery, error) {
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	route, err := s.resolveRoute(ctx, req.Sender.Location, req.Receiver.Location, req.DistanceKm)
	if err != nil {
		return nil, err
	}

	price, err := s.pricer.Compute(route.DistanceKm, req.Urgency, req.PackageSize, req.ScheduledPickupAt)
	if err != nil {
		return nil, err
	}

	now := s.now()
	eta := s.pricer.EstimatedDeliveryTime(route.DistanceKm, req.Urgency, req.ScheduledPickupAt)

	d := &domain.Delivery{
		Status:              domain.StatusPending,
		Sender:              req.Sender,
		Receiver:            req.Receiver,
		PackageType:         strings.TrimSpace(req.PackageType),
		PackageSize:         req.PackageSize,
		PackageDescription:  strings.TrimSpace(req.PackageDescription),
		WeightKg:            req.WeightKg,
		Urgency:             req.Urgency,
		ScheduledPickupAt:   req.ScheduledPickupAt,
		DistanceKm:          route.DistanceKm,
		DurationMinutes:     route.DurationMinutes,
		DistanceEstimated:   route.Estimated,
		Price:               price,
		PaymentStatus:       domain.PaymentUnpaid,
		EstimatedDeliveryAt: &eta,
		Timeline: []domain.TimelineEntry{{
			Status:  domain.StatusPending,
			Message: "Delivery created",
			At:      now,
		}},
	}

	for attempt := 1; ; attempt++ {
		d.TrackingID = domain.NewTrackingID()
		err = s.repo.Create(ctx, d)
		if err == nil {
			break
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt == trackingIDAttempts {
			return nil, err
		}
	}

	s.logger.Info("delivery created",
		logx.String("event", "delivery_created"),
		logx.String("tracking_id", d.TrackingID),
		logx.Float64("total", d.Price.Total),
		logx.Float64("distance_km", d.DistanceKm),
		logx.String("urgency", string(d.Urgency)),
	)
	s.dispatch(ctx, d.TrackingID, domain.StatusPending, "Delivery created")

	return d, nil
}

func (s *Service) resolveRoute(ctx context.Context, origin, dest *domain.Location, distanceKm float64) (routing.Route, error) {
	if origin != nil && dest != nil {
		return s.resolver.Resolve(ctx, origin, dest)
	}
	if distanceKm <= 0 {
		return routing.Route{}, fmt.Errorf("%w: either coordinates or a distance are required", apperr.ErrInvalid)
	}
	// Caller-supplied distance, duration projected the same way as the
	// straight-line fallback.
	return routing.Route{
		DistanceKm:      distanceKm,
		DurationMinutes: routing.MinutesAt(distanceKm),
		Estimated:       true,
	}, nil
}

// QuoteRequest asks for a price without creating a delivery.
type QuoteRequest struct {
	Origin            *domain.Location
	Dest              *domain.Location
	DistanceKm        float64
	Urgency           domain.Urgency
	Size              domain.PackageSize
	ScheduledPickupAt *time.Time
}

// Quote is a non-binding price preview together with the resolved route.
type Quote struct {
	Route routing.Route
	Price domain.PriceBreakdown
	ETA   time.Time
}

// Quote prices a prospective delivery. The same engine prices the real
// creation, so a quote and the delivery it becomes always agree.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	route, err := s.resolveRoute(ctx, req.Origin, req.Dest, req.DistanceKm)
	if err != nil {
		return nil, err
	}
	price, err := s.pricer.Compute(route.DistanceKm, req.Urgency, req.Size, req.ScheduledPickupAt)
	if err != nil {
		return nil, err
	}
	return &Quote{
		Route: route,
		Price: price,
		ETA:   s.pricer.EstimatedDeliveryTime(route.DistanceKm, req.Urgency, req.ScheduledPickupAt),
	}, nil
}

// Accept assigns the calling courier to a pending delivery. Exactly one of
// any number of concurrent acceptors wins; the rest get a conflict.
func (s *Service) Accept(ctx context.Context, id domain.Identity, trackingID string) (*domain.Delivery, error) {
	trackingID, err := validTracking(trackingID)
	if err != nil {
		return nil, err
	}
	if id.Role != domain.RoleCourier {
		return nil, fmt.Errorf("%w: only couriers accept deliveries", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	courier, err := s.couriers.Get(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	if courier == nil {
		return nil, fmt.Errorf("%w: unknown courier", apperr.ErrForbidden)
	}

	if err := s.arbiter.Accept(ctx, trackingID, courier.ID, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("delivery accepted",
		logx.String("event", "delivery_accepted"),
		logx.String("tracking_id", trackingID),
		logx.Int64("courier_id", courier.ID),
	)
	s.dispatch(ctx, trackingID, domain.StatusAccepted, "Courier assigned")

	return s.mustGet(ctx, trackingID)
}

// progressMessages accompany the courier-driven transitions.
var progressMessages = map[domain.Status]string{
	domain.StatusPickedUp:  "Package picked up",
	domain.StatusInTransit: "Package in transit",
	domain.StatusDelivered: "Package delivered",
}

// Advance moves an assigned delivery one step forward. Only the assigned
// courier may advance it, and only along a legal edge observed at read
// time; the guarded update re-checks that edge at commit.
func (s *Service) Advance(ctx context.Context, id domain.Identity, trackingID string, target domain.Status) (*domain.Delivery, error) {
	trackingID, err := validTracking(trackingID)
	if err != nil {
		return nil, err
	}
	msg, ok := progressMessages[target]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a progress status", apperr.ErrInvalid, target)
	}
	if id.Role != domain.RoleCourier {
		return nil, fmt.Errorf("%w: only the assigned courier advances a delivery", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.mustGet(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if !d.AssignedTo(id.UserID) {
		return nil, fmt.Errorf("%w: delivery is assigned to another courier", apperr.ErrForbidden)
	}
	if !d.Status.CanTransitionTo(target) {
		return nil, fmt.Errorf("%w: cannot move %s to %s", apperr.ErrConflict, d.Status, target)
	}

	now := s.now()
	var completedAt *time.Time
	if target == domain.StatusDelivered {
		completedAt = &now
	}

	ok, err = s.repo.AdvanceStatus(ctx, trackingID, id.UserID, d.Status, target, completedAt, domain.TimelineEntry{
		Status: target, Message: msg, At: now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery changed concurrently", apperr.ErrConflict)
	}

	s.logger.Info("delivery advanced",
		logx.String("event", "delivery_advanced"),
		logx.String("tracking_id", trackingID),
		logx.String("from", string(d.Status)),
		logx.String("to", string(target)),
		logx.Int64("courier_id", id.UserID),
	)
	s.dispatch(ctx, trackingID, target, msg)

	if target == domain.StatusDelivered {
		s.onDelivered(ctx, trackingID, id.UserID)
	}

	return s.mustGet(ctx, trackingID)
}

// onDelivered runs the consequences of a committed delivery: the courier's
// active slot is released and the escrow capture is kicked off. Neither
// failure reverts the delivered status.
func (s *Service) onDelivered(ctx context.Context, trackingID string, courierID int64) {
	err := s.repo.WithTx(ctx, func(tx ledgertx.Repository) error {
		return tx.DecrementCourierActive(ctx, courierID)
	})
	if err != nil {
		s.logger.Error("failed to release courier slot",
			logx.String("tracking_id", trackingID),
			logx.Int64("courier_id", courierID),
			logx.Err(err),
		)
	}

	if s.escrow == nil {
		return
	}
	if err := s.escrow.CaptureAndPayout(ctx, trackingID); err != nil {
		s.logger.Error("escrow capture failed after delivery, will retry",
			logx.String("tracking_id", trackingID),
			logx.Err(err),
		)
		if tlErr := s.repo.AppendTimeline(ctx, trackingID, domain.TimelineEntry{
			Status:  domain.StatusDelivered,
			Message: "Payment capture pending retry",
			At:      s.now(),
		}); tlErr != nil {
			s.logger.Warn("failed to record capture retry note", logx.Err(tlErr))
		}
	}
}

// Cancel cancels a delivery. A pending delivery can be cancelled by
// whoever holds the tracking identifier; once assigned, only the assigned
// courier or an admin may cancel. Held or captured funds are released.
func (s *Service) Cancel(ctx context.Context, id domain.Identity, trackingID, reason string) (*domain.Delivery, error) {
	trackingID, err := validTracking(trackingID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.mustGet(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return nil, fmt.Errorf("%w: delivery already %s", apperr.ErrConflict, d.Status)
	}
	if d.Status != domain.StatusPending && id.Role != domain.RoleAdmin && !d.AssignedTo(id.UserID) {
		return nil, fmt.Errorf("%w: delivery can no longer be cancelled by this actor", apperr.ErrForbidden)
	}

	msg := "Delivery cancelled"
	if r := strings.TrimSpace(reason); r != "" {
		msg = "Delivery cancelled: " + r
	}

	ok, err := s.repo.CancelFrom(ctx, trackingID, d.Status, domain.TimelineEntry{
		Status: domain.StatusCancelled, Message: msg, At: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery changed concurrently", apperr.ErrConflict)
	}

	if d.Assigned() {
		if err := s.repo.WithTx(ctx, func(tx ledgertx.Repository) error {
			return tx.DecrementCourierActive(ctx, *d.CourierID)
		}); err != nil {
			s.logger.Error("failed to release courier slot on cancel",
				logx.String("tracking_id", trackingID),
				logx.Err(err),
			)
		}
	}

	s.logger.Info("delivery cancelled",
		logx.String("event", "delivery_cancelled"),
		logx.String("tracking_id", trackingID),
		logx.String("from", string(d.Status)),
	)
	s.dispatch(ctx, trackingID, domain.StatusCancelled, msg)

	if s.escrow != nil &&
		(d.PaymentStatus == domain.PaymentAuthorized || d.PaymentStatus == domain.PaymentPaid) {
		if err := s.escrow.Refund(ctx, trackingID); err != nil {
			s.logger.Error("escrow refund failed after cancel, will retry",
				logx.String("tracking_id", trackingID),
				logx.Err(err),
			)
		}
	}

	return s.mustGet(ctx, trackingID)
}

// Track returns a delivery by its tracking identifier.
func (s *Service) Track(ctx context.Context, trackingID string) (*domain.Delivery, error) {
	trackingID, err := validTracking(trackingID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.mustGet(ctx, trackingID)
}

// List returns deliveries for the admin surface.
func (s *Service) List(ctx context.Context, status *domain.Status, limit int) ([]domain.Delivery, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, *status)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.List(ctx, status, limit)
}

// Available returns pending deliveries a courier can accept.
func (s *Service) Available(ctx context.Context, limit int) ([]domain.Delivery, error) {
	st := domain.StatusPending
	return s.List(ctx, &st, limit)
}

func (s *Service) mustGet(ctx context.Context, trackingID string) (*domain.Delivery, error) {
	d, err := s.repo.GetByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%w: delivery %s", apperr.ErrNotFound, trackingID)
	}
	return d, nil
}

// dispatch publishes a status notification. Best-effort: a broker outage
// is logged and the operation proceeds.
func (s *Service) dispatch(ctx context.Context, trackingID string, status domain.Status, msg string) {
	err := s.dispatcher.Dispatch(ctx, notify.Event{
		ID:         uuid.NewString(),
		TrackingID: trackingID,
		Status:     status,
		Message:    msg,
		At:         s.now(),
	})
	if err != nil {
		s.logger.Warn("notification dispatch failed",
			logx.String("tracking_id", trackingID),
			logx.String("status", string(status)),
			logx.Err(err),
		)
	}
}

func validTracking(raw string) (string, error) {
	id := domain.NormalizeTrackingID(raw)
	if !domain.ValidTrackingID(id) {
		return "", fmt.Errorf("%w: malformed tracking id", apperr.ErrInvalid)
	}
	return id, nil
}

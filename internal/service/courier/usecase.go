// Package courier manages courier profiles and their payout destinations.
package courier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
	"courierconnect/internal/repository"
)

type courierRepository interface {
	Create(ctx context.Context, c *domain.Courier) error
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	SetPayoutDestination(ctx context.Context, id int64, dest domain.PayoutDestination) error
	Earnings(ctx context.Context, id int64) (*repository.EarningsSummary, error)
}

// Service manages courier profiles.
type Service struct {
	repo             courierRepository
	operationTimeout time.Duration
	logger           logx.Logger
}

// NewService creates a courier Service.
func NewService(repo courierRepository, timeout time.Duration, logger logx.Logger) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{repo: repo, operationTimeout: timeout, logger: logger}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

// Register creates a courier profile with no payout destination yet.
func (s *Service) Register(ctx context.Context, name, phone string) (*domain.Courier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrInvalid)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c := &domain.Courier{
		Name:   name,
		Phone:  strings.TrimSpace(phone),
		Payout: domain.PayoutDestination{State: domain.PayoutNone},
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("courier registered",
		logx.String("event", "courier_registered"),
		logx.Int64("courier_id", c.ID),
	)
	return c, nil
}

// Get returns a courier profile.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: courier %d", apperr.ErrNotFound, id)
	}
	return c, nil
}

// SetPayoutDestination updates where a courier's earnings are transferred.
// The ready state requires an account reference; the other states clear it.
func (s *Service) SetPayoutDestination(ctx context.Context, id domain.Identity, courierID int64, dest domain.PayoutDestination) error {
	if id.Role != domain.RoleAdmin && !(id.Role == domain.RoleCourier && id.UserID == courierID) {
		return fmt.Errorf("%w: not your payout destination", apperr.ErrForbidden)
	}
	if !dest.State.Valid() {
		return fmt.Errorf("%w: unknown payout state %q", apperr.ErrInvalid, dest.State)
	}
	if dest.State == domain.PayoutReady && strings.TrimSpace(dest.AccountRef) == "" {
		return fmt.Errorf("%w: ready payout destination requires an account reference", apperr.ErrInvalid)
	}
	if dest.State != domain.PayoutReady {
		dest.AccountRef = ""
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.repo.SetPayoutDestination(ctx, courierID, dest)
}

// Earnings returns a courier's cumulative earnings and delivery counts.
func (s *Service) Earnings(ctx context.Context, id domain.Identity, courierID int64) (*repository.EarningsSummary, error) {
	if id.Role != domain.RoleAdmin && !(id.Role == domain.RoleCourier && id.UserID == courierID) {
		return nil, fmt.Errorf("%w: not your earnings", apperr.ErrForbidden)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	sum, err := s.repo.Earnings(ctx, courierID)
	if err != nil {
		return nil, err
	}
	if sum == nil {
		return nil, fmt.Errorf("%w: courier %d", apperr.ErrNotFound, courierID)
	}
	return sum, nil
}

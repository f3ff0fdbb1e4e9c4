// Package pricing computes deterministic price quotes for deliveries.
// The engine is pure: same inputs, bit-for-bit same breakdown.
package pricing

import (
	"fmt"
	"math"
	"time"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
)

// Config stores the pricing constants. CourierShare is the single
// configurable fee split applied uniformly everywhere.
type Config struct {
	BasePrice    float64
	PricePerKm   float64
	MinimumPrice float64
	CourierShare float64
}

// Multiplier tables are fixed; changing them changes quotes, so they are
// constants rather than configuration.
var urgencyMultipliers = map[domain.Urgency]float64{
	domain.UrgencyStandard:  1.0,
	domain.UrgencyExpress:   1.5,
	domain.UrgencyUrgent:    2.0,
	domain.UrgencyScheduled: 0.9,
}

var sizeMultipliers = map[domain.PackageSize]float64{
	domain.SizeSmall:      1.0,
	domain.SizeMedium:     1.2,
	domain.SizeLarge:      1.5,
	domain.SizeExtraLarge: 2.0,
}

const (
	advanceBookingDiscount = 0.10
	advanceBookingWindow   = 24 * time.Hour
)

// Engine computes price breakdowns. The clock is injectable so the
// advance-booking check is testable.
type Engine struct {
	cfg Config
	now func() time.Time
}

// NewEngine creates a pricing Engine with the given constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Compute builds an itemized breakdown for the given inputs.
//
// Multiplication order is fixed: urgency → package size → advance-booking
// discount, each multiplicative on the running subtotal. Every component is
// rounded to cents before the next step and the total is derived as the
// exact sum of the rounded components, so the stored total can never drift
// from the sum of its parts.
func (e *Engine) Compute(distanceKm float64, urgency domain.Urgency, size domain.PackageSize, scheduledPickup *time.Time) (domain.PriceBreakdown, error) {
	if distanceKm < 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: distance must be >= 0", apperr.ErrInvalid)
	}
	umult, ok := urgencyMultipliers[urgency]
	if !ok {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: unknown urgency %q", apperr.ErrInvalid, urgency)
	}
	smult, ok := sizeMultipliers[size]
	if !ok {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: unknown package size %q", apperr.ErrInvalid, size)
	}

	b := domain.PriceBreakdown{
		Base:     Round2(e.cfg.BasePrice),
		Distance: Round2(distanceKm * e.cfg.PricePerKm),
	}

	subtotal := b.Base + b.Distance
	b.UrgencySurcharge = Round2(subtotal * (umult - 1))
	subtotal += b.UrgencySurcharge

	b.SizeSurcharge = Round2(subtotal * (smult - 1))
	subtotal += b.SizeSurcharge

	// The advance-booking discount is distinct from the scheduled urgency
	// multiplier and stacks with it.
	if scheduledPickup != nil && scheduledPickup.Sub(e.now()) >= advanceBookingWindow {
		b.ScheduleDiscount = -Round2(subtotal * advanceBookingDiscount)
		subtotal += b.ScheduleDiscount
	}

	subtotal = Round2(subtotal)
	if floor := Round2(e.cfg.MinimumPrice); subtotal < floor {
		b.MinimumAdjustment = Round2(floor - subtotal)
		b.MinimumApplied = true
		subtotal += b.MinimumAdjustment
	}

	b.Total = Round2(subtotal)
	b.CourierEarnings = Round2(b.Total * e.cfg.CourierShare)
	// Subtraction, not independent rounding: the split must sum exactly.
	b.PlatformFee = Round2(b.Total - b.CourierEarnings)
	return b, nil
}

// UrgencyMultipliers returns a copy of the urgency multiplier table.
func UrgencyMultipliers() map[string]float64 {
	out := make(map[string]float64, len(urgencyMultipliers))
	for k, v := range urgencyMultipliers {
		out[string(k)] = v
	}
	return out
}

// SizeMultipliers returns a copy of the package size multiplier table.
func SizeMultipliers() map[string]float64 {
	out := make(map[string]float64, len(sizeMultipliers))
	for k, v := range sizeMultipliers {
		out[string(k)] = v
	}
	return out
}

// Round2 rounds a currency amount to cents using round-half-up.
func Round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

// Average in-city courier speed used for delivery time estimates.
const averageSpeedKmh = 30.0

var urgencyBuffer = map[domain.Urgency]time.Duration{
	domain.UrgencyStandard:  2 * time.Hour,
	domain.UrgencyExpress:   30 * time.Minute,
	domain.UrgencyUrgent:    15 * time.Minute,
	domain.UrgencyScheduled: 0,
}

// EstimatedDeliveryTime projects when the package should arrive. A
// scheduled delivery returns its scheduled time verbatim.
func (e *Engine) EstimatedDeliveryTime(distanceKm float64, urgency domain.Urgency, scheduled *time.Time) time.Time {
	if urgency == domain.UrgencyScheduled && scheduled != nil {
		return *scheduled
	}
	travel := time.Duration(distanceKm / averageSpeedKmh * float64(time.Hour))
	return e.now().Add(travel + urgencyBuffer[urgency])
}

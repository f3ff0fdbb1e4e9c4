// Package routing resolves the travel distance and duration between two
// points. A real provider is optional; when it is absent or fails, the
// resolver falls back to a straight-line estimate flagged as such.
package routing

import (
	"context"
	"fmt"
	"math"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
	"courierconnect/internal/logx"
)

// Route is the resolved travel distance and duration. Estimated marks a
// straight-line fallback rather than a road-network answer.
type Route struct {
	DistanceKm      float64
	DurationMinutes int
	Estimated       bool
}

// Provider computes a road route between two coordinates.
type Provider interface {
	Route(ctx context.Context, origin, dest domain.Location) (Route, error)
}

// Resolver picks a route from the provider and degrades to the haversine
// estimate when the provider is unavailable.
type Resolver struct {
	provider Provider
	logger   logx.Logger
}

// NewResolver creates a Resolver. A nil provider is allowed; every lookup
// then uses the estimate.
func NewResolver(provider Provider, logger logx.Logger) *Resolver {
	return &Resolver{provider: provider, logger: logger}
}

// Resolve returns the route between origin and dest. Provider failures are
// logged and absorbed by the fallback, never surfaced to the caller.
func (r *Resolver) Resolve(ctx context.Context, origin, dest *domain.Location) (Route, error) {
	if origin == nil || dest == nil {
		return Route{}, fmt.Errorf("%w: both locations are required to compute a route", apperr.ErrInvalid)
	}
	if r.provider != nil {
		route, err := r.provider.Route(ctx, *origin, *dest)
		if err == nil {
			return route, nil
		}
		r.logger.Warn("route provider failed, using straight-line estimate", logx.Err(err))
	}
	return Estimate(*origin, *dest), nil
}

// Estimate computes a straight-line route between two points, with duration
// projected at the average in-city speed.
func Estimate(origin, dest domain.Location) Route {
	km := Haversine(origin, dest)
	return Route{DistanceKm: round2(km), DurationMinutes: MinutesAt(km), Estimated: true}
}

// MinutesAt projects travel minutes for a distance at the average speed,
// never less than one minute.
func MinutesAt(km float64) int {
	minutes := int(math.Ceil(km / averageSpeedKmh * 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

const (
	earthRadiusKm   = 6371.0
	averageSpeedKmh = 30.0
)

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b domain.Location) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func round2(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}

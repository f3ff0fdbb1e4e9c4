package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"courierconnect/internal/apperr"
	"courierconnect/internal/domain"
)

// HTTPProvider queries an external maps service for road routes. The
// service is expected to answer GET {base}/route with origin/destination
// query parameters and a JSON body of distance and duration.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates an HTTPProvider. An empty base URL returns nil,
// which the resolver treats as "no provider configured".
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type routeResponse struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Route implements Provider against the maps service.
func (p *HTTPProvider) Route(ctx context.Context, origin, dest domain.Location) (Route, error) {
	q := url.Values{}
	q.Set("origin_lat", strconv.FormatFloat(origin.Lat, 'f', -1, 64))
	q.Set("origin_lng", strconv.FormatFloat(origin.Lng, 'f', -1, 64))
	q.Set("dest_lat", strconv.FormatFloat(dest.Lat, 'f', -1, 64))
	q.Set("dest_lng", strconv.FormatFloat(dest.Lng, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/route?"+q.Encode(), nil)
	if err != nil {
		return Route{}, fmt.Errorf("build route request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("%w: route request: %s", apperr.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Route{}, fmt.Errorf("%w: route service returned %d", apperr.ErrUnavailable, resp.StatusCode)
	}

	var body routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Route{}, fmt.Errorf("%w: decode route response: %s", apperr.ErrUnavailable, err)
	}
	if body.DistanceKm <= 0 {
		return Route{}, fmt.Errorf("%w: route service returned non-positive distance", apperr.ErrUnavailable)
	}
	return Route{
		DistanceKm:      round2(body.DistanceKm),
		DurationMinutes: body.DurationMinutes,
		Estimated:       false,
	}, nil
}

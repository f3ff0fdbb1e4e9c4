// Package notify publishes status-change events for downstream consumers
// (push, SMS, e-mail). Publishing is best-effort: a failed publish is the
// caller's to log, never to fail the operation that produced it.
package notify

import (
	"context"
	"time"

	"courierconnect/internal/domain"
)

// Event is one status-change notification.
type Event struct {
	ID         string        `json:"id"`
	TrackingID string        `json:"trackingId"`
	Status     domain.Status `json:"status"`
	Message    string        `json:"message"`
	At         time.Time     `json:"at"`
}

// Dispatcher delivers events to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, e Event) error
}

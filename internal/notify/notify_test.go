package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courierconnect/internal/domain"
	"courierconnect/internal/notify"
)

func TestNewKafkaDispatcher_Unconfigured(t *testing.T) {
	t.Parallel()

	d, err := notify.NewKafkaDispatcher(nil, "delivery-notifications")
	require.NoError(t, err)
	require.Nil(t, d)

	d, err = notify.NewKafkaDispatcher([]string{"k1:9092"}, "  ")
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestNilDispatcherIsNoop(t *testing.T) {
	t.Parallel()

	var d *notify.KafkaDispatcher
	require.NoError(t, d.Dispatch(context.Background(), notify.Event{}))
	require.NoError(t, d.Close())
}

func TestEvent_JSONShape(t *testing.T) {
	t.Parallel()

	e := notify.Event{
		ID:         "7f9c2ba4-e88f-11ee-a7f3-0242ac120002",
		TrackingID: "CC-ABC123",
		Status:     domain.StatusPickedUp,
		Message:    "Package picked up",
		At:         time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": "7f9c2ba4-e88f-11ee-a7f3-0242ac120002",
		"trackingId": "CC-ABC123",
		"status": "picked_up",
		"message": "Package picked up",
		"at": "2025-01-02T03:04:05Z"
	}`, string(raw))
}

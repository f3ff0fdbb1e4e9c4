package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courierconnect/internal/domain"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	legal := map[domain.Status][]domain.Status{
		domain.StatusPending:   {domain.StatusAccepted, domain.StatusCancelled},
		domain.StatusAccepted:  {domain.StatusPickedUp, domain.StatusCancelled},
		domain.StatusPickedUp:  {domain.StatusInTransit, domain.StatusCancelled},
		domain.StatusInTransit: {domain.StatusDelivered, domain.StatusCancelled},
		domain.StatusDelivered: {},
		domain.StatusCancelled: {},
	}

	all := []domain.Status{
		domain.StatusPending, domain.StatusAccepted, domain.StatusPickedUp,
		domain.StatusInTransit, domain.StatusDelivered, domain.StatusCancelled,
	}

	for from, targets := range legal {
		allowed := make(map[domain.Status]bool, len(targets))
		for _, to := range targets {
			allowed[to] = true
		}
		for _, to := range all {
			require.Equal(t, allowed[to], from.CanTransitionTo(to),
				"%s -> %s", from, to)
		}
	}
}

func TestStatus_SelfTransitionIllegal(t *testing.T) {
	t.Parallel()

	for _, s := range []domain.Status{
		domain.StatusPending, domain.StatusAccepted, domain.StatusPickedUp,
		domain.StatusInTransit, domain.StatusDelivered, domain.StatusCancelled,
	} {
		require.False(t, s.CanTransitionTo(s), "self transition %s", s)
	}
}

func TestStatus_SkippingStagesIllegal(t *testing.T) {
	t.Parallel()

	require.False(t, domain.StatusPending.CanTransitionTo(domain.StatusPickedUp))
	require.False(t, domain.StatusPending.CanTransitionTo(domain.StatusDelivered))
	require.False(t, domain.StatusAccepted.CanTransitionTo(domain.StatusDelivered))
	// no going backwards either
	require.False(t, domain.StatusInTransit.CanTransitionTo(domain.StatusPickedUp))
	require.False(t, domain.StatusDelivered.CanTransitionTo(domain.StatusPending))
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	require.True(t, domain.StatusDelivered.Terminal())
	require.True(t, domain.StatusCancelled.Terminal())
	require.False(t, domain.StatusPending.Terminal())
	require.False(t, domain.StatusInTransit.Terminal())
}

func TestStatus_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, domain.StatusPending.Valid())
	require.True(t, domain.StatusCancelled.Valid())
	require.False(t, domain.Status("lost").Valid())
	require.False(t, domain.Status("").Valid())
}

func TestPaymentStatus_Valid(t *testing.T) {
	t.Parallel()

	require.True(t, domain.PaymentUnpaid.Valid())
	require.True(t, domain.PaymentAuthorized.Valid())
	require.True(t, domain.PaymentPaid.Valid())
	require.True(t, domain.PaymentRefunded.Valid())
	require.False(t, domain.PaymentStatus("chargeback").Valid())
}

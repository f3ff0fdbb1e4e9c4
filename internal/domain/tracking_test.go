package domain_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courierconnect/internal/domain"
)

func TestNewTrackingID_Format(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := domain.NewTrackingID()
		require.True(t, domain.ValidTrackingID(id), "generated id %q", id)
		seen[id] = true
	}
	// 100 draws over a 36^6 space colliding would point at a broken generator.
	require.Greater(t, len(seen), 90)
}

func TestValidTrackingID(t *testing.T) {
	t.Parallel()

	require.True(t, domain.ValidTrackingID("CC-A1B2C3"))
	require.True(t, domain.ValidTrackingID("CC-000000"))
	require.False(t, domain.ValidTrackingID("CC-a1b2c3"))
	require.False(t, domain.ValidTrackingID("CC-A1B2C"))
	require.False(t, domain.ValidTrackingID("CCA1B2C3"))
	require.False(t, domain.ValidTrackingID(""))
	require.False(t, domain.ValidTrackingID("CC-A1B2C3X"))
}

func TestNormalizeTrackingID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "CC-A1B2C3", domain.NormalizeTrackingID("  cc-a1b2c3 "))
	require.Equal(t, "CC-A1B2C3", domain.NormalizeTrackingID("CC-A1B2C3"))
}

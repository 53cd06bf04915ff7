package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_LinearOnly(t *testing.T) {
	now := time.Now().UTC()

	t.Run("created to in_transit to delivered", func(t *testing.T) {
		s := NewShipment("s-1", "o-1", "123 Main St")
		require.NoError(t, s.Advance(StatusInTransit, now))
		require.NoError(t, s.Advance(StatusDelivered, now))
		assert.Equal(t, StatusDelivered, s.Status)
	})

	t.Run("no skipping", func(t *testing.T) {
		s := NewShipment("s-1", "o-1", "123 Main St")
		assert.ErrorIs(t, s.Advance(StatusDelivered, now), ErrInvalidTransition)
	})

	t.Run("no reverse", func(t *testing.T) {
		s := NewShipment("s-1", "o-1", "123 Main St")
		require.NoError(t, s.Advance(StatusInTransit, now))
		assert.ErrorIs(t, s.Advance(StatusCreated, now), ErrInvalidTransition)
	})

	t.Run("unknown status", func(t *testing.T) {
		s := NewShipment("s-1", "o-1", "123 Main St")
		assert.ErrorIs(t, s.Advance("lost", now), ErrUnknownStatus)
	})
}

func TestAssignCarrier(t *testing.T) {
	now := time.Now().UTC()

	s := NewShipment("s-1", "o-1", "123 Main St")
	require.NoError(t, s.AssignCarrier("DHL", now))
	require.NotNil(t, s.Carrier)
	assert.Equal(t, "DHL", *s.Carrier)

	require.NoError(t, s.Advance(StatusInTransit, now))
	require.NoError(t, s.AssignCarrier("UPS", now), "reassignment allowed while in transit")

	require.NoError(t, s.Advance(StatusDelivered, now))
	assert.ErrorIs(t, s.AssignCarrier("FedEx", now), ErrAlreadyDelivered)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_TotalFromLines(t *testing.T) {
	o := NewOrder("o-1", "u-1", []OrderLine{
		{ProductID: "p1", Quantity: 2, UnitPriceCents: 1000},
		{ProductID: "p2", Quantity: 1, UnitPriceCents: 2000},
	})
	assert.Equal(t, int64(4000), o.TotalCents)
	assert.Equal(t, StatusPending, o.Status)
	assert.Len(t, o.Lines, 2)
}

func TestConfirm(t *testing.T) {
	now := time.Now().UTC()

	t.Run("pending confirms", func(t *testing.T) {
		o := NewOrder("o-1", "u-1", []OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
		changed, err := o.Confirm(now)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, StatusConfirmed, o.Status)
	})

	t.Run("confirmed is a no-op", func(t *testing.T) {
		o := NewOrder("o-1", "u-1", []OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
		_, err := o.Confirm(now)
		require.NoError(t, err)
		changed, err := o.Confirm(now)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("cancelled conflicts", func(t *testing.T) {
		o := NewOrder("o-1", "u-1", []OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
		require.NoError(t, o.Cancel(now))
		_, err := o.Confirm(now)
		assert.ErrorIs(t, err, ErrCancelled)
	})
}

func TestCancel_OnlyFromPending(t *testing.T) {
	now := time.Now().UTC()
	o := NewOrder("o-1", "u-1", []OrderLine{{ProductID: "p1", Quantity: 1, UnitPriceCents: 100}})
	_, err := o.Confirm(now)
	require.NoError(t, err)
	assert.ErrorIs(t, o.Cancel(now), ErrNotPending)
}

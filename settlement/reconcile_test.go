package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("new_transfers_start_active", func(t *testing.T) {
		computed := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusActive}}

		result := Reconcile(computed, nil)
		require.Len(t, result.Active, 1)
		assert.Empty(t, result.Settled)
		assert.Empty(t, result.Dropped)
		assert.Empty(t, result.Warnings)
	})

	t.Run("settled_survives_identical_recompute", func(t *testing.T) {
		prior := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusSettled, SettledAt: &now}}
		computed := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusActive}}

		result := Reconcile(computed, prior)
		require.Len(t, result.Settled, 1)
		assert.Equal(t, StatusSettled, result.Settled[0].Status)
		assert.Equal(t, &now, result.Settled[0].SettledAt)
		assert.Empty(t, result.Active)
		assert.Empty(t, result.Warnings)
	})

	t.Run("amount_drift_resets_to_active", func(t *testing.T) {
		prior := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusSettled, SettledAt: &now}}
		computed := []Transfer{{From: a, To: b, Currency: "USD", Amount: 150, Status: StatusActive}}

		result := Reconcile(computed, prior)
		require.Len(t, result.Active, 1)
		assert.Equal(t, StatusActive, result.Active[0].Status)
		assert.Nil(t, result.Active[0].SettledAt)

		require.Len(t, result.Warnings, 1)
		assert.Equal(t, WarnSettledAmountDrift, result.Warnings[0].Code)
		assert.Equal(t, computed[0].Key(), *result.Warnings[0].Key)
	})

	t.Run("vanished_debt_is_dropped", func(t *testing.T) {
		prior := []Transfer{
			{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusSettled, SettledAt: &now},
			{From: a, To: c, Currency: "USD", Amount: 50, Status: StatusActive},
		}

		result := Reconcile(nil, prior)
		assert.Empty(t, result.Active)
		assert.Empty(t, result.Settled)
		require.Len(t, result.Dropped, 2)
	})

	t.Run("direction_flip_drops_and_recreates", func(t *testing.T) {
		// a owed b and settled; after an edit b owes a. The reversed
		// pair is a different key, so the confirmation is dropped and
		// the new direction starts active.
		prior := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusSettled, SettledAt: &now}}
		computed := []Transfer{{From: b, To: a, Currency: "USD", Amount: 40, Status: StatusActive}}

		result := Reconcile(computed, prior)
		require.Len(t, result.Active, 1)
		assert.Equal(t, b, result.Active[0].From)
		require.Len(t, result.Dropped, 1)
		assert.Equal(t, a, result.Dropped[0].From)
		assert.Empty(t, result.Warnings)
	})

	t.Run("active_prior_never_blocks", func(t *testing.T) {
		prior := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusActive}}
		computed := []Transfer{{From: a, To: b, Currency: "USD", Amount: 120, Status: StatusActive}}

		result := Reconcile(computed, prior)
		require.Len(t, result.Active, 1)
		assert.Equal(t, Amount(120), result.Active[0].Amount)
		assert.Empty(t, result.Warnings)
	})

	t.Run("same_pair_other_currency_is_independent", func(t *testing.T) {
		prior := []Transfer{{From: a, To: b, Currency: "EUR", Amount: 100, Status: StatusSettled, SettledAt: &now}}
		computed := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusActive}}

		result := Reconcile(computed, prior)
		require.Len(t, result.Active, 1)
		require.Len(t, result.Dropped, 1)
	})
}

func TestMarkSettled(t *testing.T) {
	a, b := pid(1), pid(2)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	key := TransferKey{From: a, To: b, Currency: "USD"}

	base := []Transfer{{From: a, To: b, Currency: "USD", Amount: 100, Status: StatusActive}}

	t.Run("settle_then_unsettle", func(t *testing.T) {
		settled, err := MarkSettled(base, key, now)
		require.NoError(t, err)
		assert.Equal(t, StatusSettled, settled[0].Status)
		assert.Equal(t, &now, settled[0].SettledAt)
		// original slice untouched
		assert.Equal(t, StatusActive, base[0].Status)

		reopened, err := MarkUnsettled(settled, key)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, reopened[0].Status)
		assert.Nil(t, reopened[0].SettledAt)
	})

	t.Run("settling_twice_is_noop", func(t *testing.T) {
		once, err := MarkSettled(base, key, now)
		require.NoError(t, err)

		later := now.Add(time.Hour)
		twice, err := MarkSettled(once, key, later)
		require.NoError(t, err)
		assert.Equal(t, &now, twice[0].SettledAt)
	})

	t.Run("unknown_key", func(t *testing.T) {
		_, err := MarkSettled(base, TransferKey{From: b, To: a, Currency: "USD"}, now)
		assert.ErrorIs(t, err, ErrTransferNotFound)
	})
}

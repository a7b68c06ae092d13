package settlement

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSettlement(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)
	participants := []Participant{
		{ID: a, Name: "Asha"},
		{ID: b, Name: "Ben"},
		{ID: c, Name: "Cleo"},
	}

	expenses := []Expense{
		{ID: uuid.New(), PaidBy: a, Currency: "USD", Amount: 9000, Split: SplitEqual,
			Weights: map[uuid.UUID]int64{a: 1, b: 1, c: 1}},
		{ID: uuid.New(), PaidBy: b, Currency: "USD", Amount: 3000, Split: SplitEqual,
			Weights: map[uuid.UUID]int64{a: 1, b: 1, c: 1}},
	}

	t.Run("full_pipeline", func(t *testing.T) {
		summary, err := ComputeSettlement(expenses, participants, "USD", nil)
		require.NoError(t, err)

		assert.Equal(t, "USD", summary.Currency)
		require.Len(t, summary.Totals, 3)
		assert.Equal(t, ParticipantTotal{ParticipantID: a, Name: "Asha", Paid: 9000, Owed: 4000, Net: 5000}, summary.Totals[0])
		assert.Equal(t, ParticipantTotal{ParticipantID: b, Name: "Ben", Paid: 3000, Owed: 4000, Net: -1000}, summary.Totals[1])
		assert.Equal(t, ParticipantTotal{ParticipantID: c, Name: "Cleo", Paid: 0, Owed: 4000, Net: -4000}, summary.Totals[2])

		require.Len(t, summary.Active, 2)
		assert.Equal(t, Transfer{From: c, To: a, Currency: "USD", Amount: 4000, Status: StatusActive}, summary.Active[0])
		assert.Equal(t, Transfer{From: b, To: a, Currency: "USD", Amount: 1000, Status: StatusActive}, summary.Active[1])
		assert.Empty(t, summary.Warnings)
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := ComputeSettlement(expenses, participants, "USD", nil)
		require.NoError(t, err)
		second, err := ComputeSettlement(expenses, participants, "USD", nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("settle_then_recompute_keeps_confirmation", func(t *testing.T) {
		summary, err := ComputeSettlement(expenses, participants, "USD", nil)
		require.NoError(t, err)

		now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
		persisted, err := MarkSettled(summary.Active, summary.Active[0].Key(), now)
		require.NoError(t, err)

		again, err := ComputeSettlement(expenses, participants, "USD", persisted)
		require.NoError(t, err)
		require.Len(t, again.Settled, 1)
		assert.Equal(t, summary.Active[0].Key(), again.Settled[0].Key())
		require.Len(t, again.Active, 1)
		assert.Empty(t, again.Warnings)
	})

	t.Run("expense_edit_drifts_settled_transfer", func(t *testing.T) {
		summary, err := ComputeSettlement(expenses, participants, "USD", nil)
		require.NoError(t, err)

		now := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
		persisted, err := MarkSettled(summary.Active, summary.Active[0].Key(), now)
		require.NoError(t, err)

		edited := make([]Expense, len(expenses))
		copy(edited, expenses)
		edited[0].Amount = 12000

		again, err := ComputeSettlement(edited, participants, "USD", persisted)
		require.NoError(t, err)
		assert.Empty(t, again.Settled)
		require.Len(t, again.Warnings, 1)
		assert.Equal(t, WarnSettledAmountDrift, again.Warnings[0].Code)
	})

	t.Run("empty_currency_run", func(t *testing.T) {
		summary, err := ComputeSettlement(expenses, participants, "EUR", nil)
		require.NoError(t, err)
		assert.Empty(t, summary.Totals)
		assert.Empty(t, summary.Active)
	})
}

func TestValidateExpense(t *testing.T) {
	a, b := pid(1), pid(2)
	roster := testRoster(a, b)

	t.Run("valid_equal", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 100, Split: SplitEqual,
			Weights: map[uuid.UUID]int64{a: 1, b: 1}}
		assert.Empty(t, ValidateExpense(exp, roster))
	})

	t.Run("collects_all_problems", func(t *testing.T) {
		exp := Expense{PaidBy: pid(9), Currency: "", Amount: 0, Split: SplitWeighted,
			Weights: map[uuid.UUID]int64{a: -2}}
		errs := ValidateExpense(exp, roster)

		fields := make(map[string]bool)
		for _, e := range errs {
			fields[e.Field] = true
		}
		assert.True(t, fields["amount"])
		assert.True(t, fields["currency"])
		assert.True(t, fields["paid_by"])
		assert.True(t, fields["weights"])
	})

	t.Run("itemized_sum_mismatch", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 500, Split: SplitItemized,
			Shares: map[uuid.UUID]Amount{a: 200, b: 200}}
		errs := ValidateExpense(exp, roster)
		require.Len(t, errs, 1)
		assert.Equal(t, "shares", errs[0].Field)
	})

	t.Run("unknown_split", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 100, Split: SplitType("shares")}
		errs := ValidateExpense(exp, roster)
		require.NotEmpty(t, errs)
		assert.Equal(t, "split", errs[0].Field)
	})
}

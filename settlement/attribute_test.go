package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExplainTransfer(t *testing.T) {
	from, to, third := pid(1), pid(2), pid(3)
	roster := testRoster(from, to, third)
	transfer := Transfer{From: from, To: to, Currency: "USD", Amount: 1500, Status: StatusActive}

	paidByTo := Expense{
		ID: uuid.New(), PaidBy: to, Currency: "USD", Amount: 3000,
		Split: SplitEqual, Weights: map[uuid.UUID]int64{from: 1, to: 1, third: 1},
	}
	paidByFrom := Expense{
		ID: uuid.New(), PaidBy: from, Currency: "USD", Amount: 2000,
		Split: SplitEqual, Weights: map[uuid.UUID]int64{from: 1, to: 1},
	}
	paidByThird := Expense{
		ID: uuid.New(), PaidBy: third, Currency: "USD", Amount: 900,
		Split: SplitEqual, Weights: map[uuid.UUID]int64{from: 1, to: 1, third: 1},
	}
	otherCurrency := Expense{
		ID: uuid.New(), PaidBy: to, Currency: "EUR", Amount: 4000,
		Split: SplitEqual, Weights: map[uuid.UUID]int64{from: 1, to: 1},
	}

	t.Run("sign_convention", func(t *testing.T) {
		expenses := []Expense{paidByTo, paidByFrom, paidByThird, otherCurrency}

		breakdown, err := ExplainTransfer(transfer, expenses, roster)
		require.NoError(t, err)
		require.Len(t, breakdown.Contributions, 3)

		// to paid: from's share flows from -> to.
		c0 := breakdown.Contributions[0]
		assert.Equal(t, paidByTo.ID, c0.ExpenseID)
		assert.Equal(t, Amount(0), c0.FromPaid)
		assert.Equal(t, Amount(3000), c0.ToPaid)
		assert.Equal(t, Amount(1000), c0.FromOwes)
		assert.Equal(t, c0.FromOwes, c0.Net)

		// from paid: to's share flows back, so the net is negative in
		// the from -> to direction.
		c1 := breakdown.Contributions[1]
		assert.Equal(t, paidByFrom.ID, c1.ExpenseID)
		assert.Equal(t, Amount(2000), c1.FromPaid)
		assert.Equal(t, Amount(-1000), c1.Net)

		// a third party paid: no direct debt between the pair.
		c2 := breakdown.Contributions[2]
		assert.Equal(t, paidByThird.ID, c2.ExpenseID)
		assert.Equal(t, Amount(0), c2.Net)
	})

	t.Run("relevant_excludes_zero_net", func(t *testing.T) {
		expenses := []Expense{paidByTo, paidByFrom, paidByThird}

		breakdown, err := ExplainTransfer(transfer, expenses, roster)
		require.NoError(t, err)
		require.Len(t, breakdown.Relevant, 2)
		assert.Equal(t, paidByTo.ID, breakdown.Relevant[0].ExpenseID)
		assert.Equal(t, paidByFrom.ID, breakdown.Relevant[1].ExpenseID)
	})

	t.Run("unrelated_expense_skipped", func(t *testing.T) {
		soloThird := Expense{
			ID: uuid.New(), PaidBy: third, Currency: "USD", Amount: 500,
			Split: SplitEqual, Weights: map[uuid.UUID]int64{third: 1},
		}

		breakdown, err := ExplainTransfer(transfer, []Expense{soloThird}, roster)
		require.NoError(t, err)
		assert.Empty(t, breakdown.Contributions)
	})
}

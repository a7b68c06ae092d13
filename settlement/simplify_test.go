package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimplifyDebts(t *testing.T) {
	a, b, c, d := pid(1), pid(2), pid(3), pid(4)

	t.Run("single_pair", func(t *testing.T) {
		transfers := SimplifyDebts(map[uuid.UUID]Amount{a: -500, b: 500}, "USD")
		require.Len(t, transfers, 1)
		assert.Equal(t, Transfer{From: a, To: b, Currency: "USD", Amount: 500, Status: StatusActive}, transfers[0])
	})

	t.Run("largest_pairs_first", func(t *testing.T) {
		// c is the biggest creditor, a the biggest debtor; they match
		// first and the rest falls out of the residue.
		balances := map[uuid.UUID]Amount{a: -700, b: -300, c: 800, d: 200}
		transfers := SimplifyDebts(balances, "USD")

		require.Len(t, transfers, 3)
		assert.Equal(t, Transfer{From: a, To: c, Currency: "USD", Amount: 700, Status: StatusActive}, transfers[0])
		assert.Equal(t, Transfer{From: b, To: d, Currency: "USD", Amount: 200, Status: StatusActive}, transfers[1])
		assert.Equal(t, Transfer{From: b, To: c, Currency: "USD", Amount: 100, Status: StatusActive}, transfers[2])
	})

	t.Run("ties_broken_by_ascending_id", func(t *testing.T) {
		balances := map[uuid.UUID]Amount{a: -100, b: -100, c: 100, d: 100}
		transfers := SimplifyDebts(balances, "USD")

		require.Len(t, transfers, 2)
		assert.Equal(t, a, transfers[0].From)
		assert.Equal(t, c, transfers[0].To)
		assert.Equal(t, b, transfers[1].From)
		assert.Equal(t, d, transfers[1].To)
	})

	t.Run("zero_balances_ignored", func(t *testing.T) {
		transfers := SimplifyDebts(map[uuid.UUID]Amount{a: 0, b: -40, c: 40}, "USD")
		require.Len(t, transfers, 1)
		assert.Equal(t, b, transfers[0].From)
	})

	t.Run("applying_transfers_zeroes_all_balances", func(t *testing.T) {
		cases := []map[uuid.UUID]Amount{
			{a: -700, b: -300, c: 800, d: 200},
			{a: -1, b: 1},
			{a: -12345, b: -54321, c: 66666},
			{a: 999, b: -333, c: -333, d: -333},
		}

		for _, balances := range cases {
			transfers := SimplifyDebts(balances, "USD")

			residue := make(map[uuid.UUID]Amount, len(balances))
			nonZero := 0
			for id, bal := range balances {
				residue[id] = bal
				if bal != 0 {
					nonZero++
				}
			}
			for _, tr := range transfers {
				residue[tr.From] += tr.Amount
				residue[tr.To] -= tr.Amount
			}
			for id, r := range residue {
				assert.Equalf(t, Amount(0), r, "participant %s left with residue", id)
			}
			assert.LessOrEqual(t, len(transfers), nonZero-1)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		balances := map[uuid.UUID]Amount{a: -250, b: -250, c: 150, d: 350}
		first := SimplifyDebts(balances, "USD")
		second := SimplifyDebts(balances, "USD")
		assert.Equal(t, first, second)
	})

	t.Run("empty_input", func(t *testing.T) {
		assert.Empty(t, SimplifyDebts(nil, "USD"))
	})
}

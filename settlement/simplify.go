package settlement

import (
	"github.com/google/uuid"
)

// SimplifyDebts reduces one currency's net balances into an ordered list
// of pairwise transfers. Greedy cash-flow reduction: repeatedly match the
// largest debtor with the largest creditor, ties broken by ascending
// participant id. Produces at most n-1 transfers for n non-zero balances.
// The result is a heuristic reduction, not a proven graph-theoretic
// minimum. All emitted transfers start active.
func SimplifyDebts(balances map[uuid.UUID]Amount, currency string) []Transfer {
	type entry struct {
		id     uuid.UUID
		amount Amount // always positive
	}

	var debtors, creditors []entry
	for _, id := range sortedIDs(balances) {
		switch b := balances[id]; {
		case b < 0:
			debtors = append(debtors, entry{id: id, amount: -b})
		case b > 0:
			creditors = append(creditors, entry{id: id, amount: b})
		}
	}

	// Largest amount first; the slices are in ascending id order, so a
	// linear scan with strict greater-than lands on the smallest id
	// among equals.
	pickMax := func(entries []entry) int {
		best := 0
		for i := 1; i < len(entries); i++ {
			if entries[i].amount > entries[best].amount {
				best = i
			}
		}
		return best
	}
	remove := func(entries []entry, i int) []entry {
		return append(entries[:i], entries[i+1:]...)
	}

	var transfers []Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		di := pickMax(debtors)
		ci := pickMax(creditors)

		amount := debtors[di].amount
		if creditors[ci].amount < amount {
			amount = creditors[ci].amount
		}

		transfers = append(transfers, Transfer{
			From:     debtors[di].id,
			To:       creditors[ci].id,
			Currency: currency,
			Amount:   amount,
			Status:   StatusActive,
		})

		debtors[di].amount -= amount
		creditors[ci].amount -= amount
		if debtors[di].amount == 0 {
			debtors = remove(debtors, di)
		}
		if creditors[ci].amount == 0 {
			creditors = remove(creditors, ci)
		}
	}
	return transfers
}

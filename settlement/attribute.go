package settlement

import (
	"fmt"

	"github.com/google/uuid"
)

// ExplainTransfer decomposes a transfer into per-expense contributions so
// a user can see where the debt came from. For each expense in the
// transfer's currency that touches either endpoint, Net is measured in the
// from->to direction:
//
//   - to paid the expense, from did not: Net = from's share (from owes to)
//   - from paid the expense, to did not: Net = -to's share (to owes from)
//   - anything else (third-party payer, or both paid): Net = 0, the
//     expense creates no direct debt between the pair
//
// Relevant keeps only non-zero contributions, in original expense order.
// Because debt simplification may route money through third parties, the
// relevant contributions are not guaranteed to sum to the transfer amount.
func ExplainTransfer(t Transfer, expenses []Expense, roster map[uuid.UUID]Participant) (TransferBreakdown, error) {
	breakdown := TransferBreakdown{Transfer: t}

	for _, exp := range expenses {
		if exp.Currency != t.Currency {
			continue
		}
		shares, err := Allocate(exp, roster)
		if err != nil {
			return TransferBreakdown{}, fmt.Errorf("expense %s: %w", exp.ID, err)
		}

		fromOwes, fromIn := shares[t.From]
		toOwes, toIn := shares[t.To]
		if !fromIn && !toIn && exp.PaidBy != t.From && exp.PaidBy != t.To {
			continue
		}

		c := Contribution{
			ExpenseID: exp.ID,
			FromOwes:  fromOwes,
			ToOwes:    toOwes,
		}
		if exp.PaidBy == t.From {
			c.FromPaid = exp.Amount
		}
		if exp.PaidBy == t.To {
			c.ToPaid = exp.Amount
		}

		switch {
		case exp.PaidBy == t.To && exp.PaidBy != t.From:
			c.Net = fromOwes
		case exp.PaidBy == t.From && exp.PaidBy != t.To:
			c.Net = -toOwes
		}

		breakdown.Contributions = append(breakdown.Contributions, c)
		if c.Net != 0 {
			breakdown.Relevant = append(breakdown.Relevant, c)
		}
	}
	return breakdown, nil
}

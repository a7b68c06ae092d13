package settlement

import (
	"fmt"

	"github.com/google/uuid"
)

// AggregateBalances sums paid and owed amounts per participant across all
// expenses denominated in the requested currency. Currencies are never
// mixed or converted; a multi-currency trip is settled independently per
// currency. Participants that appear in no expense of the currency are
// omitted.
//
// The per-currency ledger should sum to exactly zero; if it does not, a
// data-integrity warning is attached and the best-effort result is still
// returned.
func AggregateBalances(expenses []Expense, roster map[uuid.UUID]Participant, currency string) (map[uuid.UUID]Position, []Warning, error) {
	positions := make(map[uuid.UUID]Position)

	for _, exp := range expenses {
		if exp.Currency != currency {
			continue
		}
		shares, err := Allocate(exp, roster)
		if err != nil {
			return nil, nil, fmt.Errorf("expense %s: %w", exp.ID, err)
		}

		payer := positions[exp.PaidBy]
		payer.Paid += exp.Amount
		positions[exp.PaidBy] = payer

		for id, share := range shares {
			p := positions[id]
			p.Owed += share
			positions[id] = p
		}
	}

	var warnings []Warning
	var net Amount
	for _, p := range positions {
		net += p.Net()
	}
	if net != 0 {
		warnings = append(warnings, Warning{
			Code:    WarnUnbalancedLedger,
			Message: fmt.Sprintf("%s balances sum to %d, expected 0", currency, net),
		})
	}
	return positions, warnings, nil
}

// Package settlement is the exact-arithmetic settlement engine: it
// allocates expense shares under equal, weighted, and itemized split
// policies, aggregates per-currency net balances, reduces them to a small
// set of transfers, explains any transfer by expense, and reconciles fresh
// computations with persisted payment confirmations.
//
// The engine is a pure library over in-memory snapshots. Every operation
// is a function of its explicit inputs and is safely re-entrant; storage,
// identity, and transport belong to the calling layer.
package settlement

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ComputeSettlement runs the full pipeline for one currency: allocate
// every expense, aggregate positions, simplify debts, then reconcile the
// result against prior persisted confirmations. Identical inputs always
// produce identical output; recomputation is a full rebuild, never an
// incremental patch.
func ComputeSettlement(expenses []Expense, participants []Participant, currency string, prior []Transfer) (Summary, error) {
	roster := Roster(participants)

	positions, warnings, err := AggregateBalances(expenses, roster, currency)
	if err != nil {
		return Summary{}, err
	}

	balances := make(map[uuid.UUID]Amount, len(positions))
	for id, p := range positions {
		balances[id] = p.Net()
	}
	reconciled := Reconcile(SimplifyDebts(balances, currency), prior)

	summary := Summary{
		Currency: currency,
		Totals:   make([]ParticipantTotal, 0, len(positions)),
		Active:   reconciled.Active,
		Settled:  reconciled.Settled,
		Dropped:  reconciled.Dropped,
		Warnings: append(warnings, reconciled.Warnings...),
	}
	for _, id := range sortedIDs(positions) {
		p := positions[id]
		summary.Totals = append(summary.Totals, ParticipantTotal{
			ParticipantID: id,
			Name:          roster[id].Name,
			Paid:          p.Paid,
			Owed:          p.Owed,
			Net:           p.Net(),
		})
	}
	return summary, nil
}

// Roster indexes participants by id.
func Roster(participants []Participant) map[uuid.UUID]Participant {
	roster := make(map[uuid.UUID]Participant, len(participants))
	for _, p := range participants {
		roster[p.ID] = p
	}
	return roster
}

// ValidateExpense runs the pre-allocation checks on an expense and
// returns every problem found. An empty slice means the expense is safe to
// allocate.
func ValidateExpense(exp Expense, roster map[uuid.UUID]Participant) []ValidationError {
	var errs []ValidationError

	if exp.Amount <= 0 {
		errs = append(errs, ValidationError{Field: "amount", Message: "must be positive"})
	}
	if exp.Currency == "" {
		errs = append(errs, ValidationError{Field: "currency", Message: "is required"})
	}
	if _, ok := roster[exp.PaidBy]; !ok {
		errs = append(errs, ValidationError{Field: "paid_by", Message: "payer is not a trip member"})
	}

	checkMembers := func(ids []uuid.UUID) {
		for _, id := range ids {
			if _, ok := roster[id]; !ok {
				errs = append(errs, ValidationError{
					Field:   "participants",
					Message: fmt.Sprintf("%s is not a trip member", id),
				})
			}
		}
	}

	switch exp.Split {
	case SplitEqual:
		if len(exp.Weights) == 0 {
			errs = append(errs, ValidationError{Field: "participants", Message: "at least one participant required"})
		}
		checkMembers(sortedIDs(exp.Weights))

	case SplitWeighted:
		if len(exp.Weights) == 0 {
			errs = append(errs, ValidationError{Field: "participants", Message: "at least one participant required"})
		}
		for _, id := range sortedIDs(exp.Weights) {
			if exp.Weights[id] <= 0 {
				errs = append(errs, ValidationError{
					Field:   "weights",
					Message: fmt.Sprintf("weight for %s must be positive", id),
				})
			}
		}
		checkMembers(sortedIDs(exp.Weights))

	case SplitItemized:
		if len(exp.Shares) == 0 {
			errs = append(errs, ValidationError{Field: "shares", Message: "itemized shares are required"})
		}
		var sum Amount
		for _, id := range sortedIDs(exp.Shares) {
			if exp.Shares[id] < 0 {
				errs = append(errs, ValidationError{
					Field:   "shares",
					Message: fmt.Sprintf("share for %s must not be negative", id),
				})
			}
			sum += exp.Shares[id]
		}
		if len(exp.Shares) > 0 && sum != exp.Amount {
			errs = append(errs, ValidationError{
				Field:   "shares",
				Message: fmt.Sprintf("shares sum to %d, expense amount is %d", sum, exp.Amount),
			})
		}
		checkMembers(sortedIDs(exp.Shares))

	default:
		errs = append(errs, ValidationError{
			Field:   "split",
			Message: fmt.Sprintf("unknown split type %q", exp.Split),
		})
	}

	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

package settlement

import (
	"fmt"
	"time"
)

// ReconcileResult is the outcome of merging freshly computed transfers
// with previously persisted confirmation state.
type ReconcileResult struct {
	Active   []Transfer
	Settled  []Transfer
	Dropped  []Transfer
	Warnings []Warning
}

// Transfers returns active then settled transfers as one list, preserving
// each list's order.
func (r ReconcileResult) Transfers() []Transfer {
	out := make([]Transfer, 0, len(r.Active)+len(r.Settled))
	out = append(out, r.Active...)
	return append(out, r.Settled...)
}

// Reconcile merges computed transfers with prior persisted state so a
// user's payment confirmation is not silently lost across recomputation.
// Per direction-sensitive key (from, to, currency):
//
//   - key not previously seen: active
//   - previously settled, amount unchanged: stays settled (idempotent)
//   - previously settled, amount changed: reset to active plus a drift
//     warning; the confirmation no longer reflects current truth
//   - prior key absent from the new computation: reported in Dropped,
//     never silently ignored
//
// A debt whose direction flipped between runs produces a new key, so the
// old settled record is dropped and the new direction starts active
// (drop-and-recreate).
func Reconcile(computed []Transfer, prior []Transfer) ReconcileResult {
	priorByKey := make(map[TransferKey]Transfer, len(prior))
	for _, p := range prior {
		priorByKey[p.Key()] = p
	}

	var result ReconcileResult
	seen := make(map[TransferKey]bool, len(computed))

	for _, t := range computed {
		key := t.Key()
		seen[key] = true
		t.Status = StatusActive
		t.SettledAt = nil

		if old, ok := priorByKey[key]; ok && old.Status == StatusSettled {
			if old.Amount == t.Amount {
				t.Status = StatusSettled
				t.SettledAt = old.SettledAt
			} else {
				result.Warnings = append(result.Warnings, Warning{
					Code: WarnSettledAmountDrift,
					Message: fmt.Sprintf("settled transfer amount changed from %d to %d, confirmation reset",
						old.Amount, t.Amount),
					Key: &key,
				})
			}
		}

		if t.Status == StatusSettled {
			result.Settled = append(result.Settled, t)
		} else {
			result.Active = append(result.Active, t)
		}
	}

	for _, p := range prior {
		if !seen[p.Key()] {
			result.Dropped = append(result.Dropped, p)
		}
	}
	return result
}

// MarkSettled records a user's confirmation that the transfer identified
// by key has been paid. Settling an already-settled transfer is a no-op.
// Computed amounts are never touched.
func MarkSettled(transfers []Transfer, key TransferKey, now time.Time) ([]Transfer, error) {
	return setStatus(transfers, key, StatusSettled, &now)
}

// MarkUnsettled reopens a previously confirmed transfer. Idempotent, like
// MarkSettled.
func MarkUnsettled(transfers []Transfer, key TransferKey) ([]Transfer, error) {
	return setStatus(transfers, key, StatusActive, nil)
}

func setStatus(transfers []Transfer, key TransferKey, status TransferStatus, settledAt *time.Time) ([]Transfer, error) {
	out := make([]Transfer, len(transfers))
	copy(out, transfers)
	for i := range out {
		if out[i].Key() != key {
			continue
		}
		if out[i].Status != status {
			out[i].Status = status
			out[i].SettledAt = settledAt
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s (%s)", ErrTransferNotFound, key.From, key.To, key.Currency)
}

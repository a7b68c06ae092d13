package settlement

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/google/uuid"
)

// sortedIDs returns map keys in ascending id order. Every remainder and
// tie-break rule in the engine is defined against this order, so the same
// inputs always produce the same shares.
func sortedIDs[V any](m map[uuid.UUID]V) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return bytes.Compare(ids[i][:], ids[j][:]) < 0
	})
	return ids
}

// apportion divides total proportionally to weights using the
// largest-remainder (Hamilton) method. Every floor share is exact rational
// arithmetic; leftover minor units go to the largest fractional remainders
// first, ties broken by ascending id. The returned shares always sum to
// total.
func apportion(total Amount, weights map[uuid.UUID]int64) (map[uuid.UUID]Amount, error) {
	if len(weights) == 0 {
		return nil, ErrNoParticipants
	}

	var weightSum int64
	for id, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("%w: participant %s has weight %d", ErrNonPositiveWeight, id, w)
		}
		weightSum += w
	}

	type slot struct {
		id        uuid.UUID
		share     Amount
		remainder *big.Int
	}

	ids := sortedIDs(weights)
	slots := make([]slot, 0, len(ids))
	bigSum := big.NewInt(weightSum)

	allocated := Amount(0)
	for _, id := range ids {
		// floor(total * weight / weightSum), remainder kept exactly
		prod := new(big.Int).Mul(big.NewInt(int64(total)), big.NewInt(weights[id]))
		quo, rem := new(big.Int).QuoRem(prod, bigSum, new(big.Int))
		share := Amount(quo.Int64())
		allocated += share
		slots = append(slots, slot{id: id, share: share, remainder: rem})
	}

	// Hand out the leftover minor units, largest remainder first. The
	// slice is already in ascending id order, and SliceStable keeps that
	// order among equal remainders.
	leftover := total - allocated
	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].remainder.Cmp(slots[j].remainder) > 0
	})
	for i := Amount(0); i < leftover; i++ {
		slots[i].share++
	}

	shares := make(map[uuid.UUID]Amount, len(slots))
	for _, s := range slots {
		shares[s.id] = s.share
	}
	return shares, nil
}

// Allocate computes each participant's exact share of one expense. The
// shares are guaranteed to sum to exactly expense.Amount; a mismatch is
// returned as ErrShareConservation and must be treated as fatal.
func Allocate(exp Expense, roster map[uuid.UUID]Participant) (map[uuid.UUID]Amount, error) {
	if exp.Amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNonPositiveAmount, exp.Amount)
	}

	var shares map[uuid.UUID]Amount
	var err error

	switch exp.Split {
	case SplitEqual:
		if len(exp.Weights) == 0 {
			return nil, ErrNoParticipants
		}
		ones := make(map[uuid.UUID]int64, len(exp.Weights))
		for id := range exp.Weights {
			ones[id] = 1
		}
		shares, err = apportion(exp.Amount, ones)

	case SplitWeighted:
		shares, err = apportion(exp.Amount, exp.Weights)

	case SplitItemized:
		if len(exp.Shares) == 0 {
			return nil, ErrNoParticipants
		}
		shares = make(map[uuid.UUID]Amount, len(exp.Shares))
		for id, s := range exp.Shares {
			shares[id] = s
		}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplitType, exp.Split)
	}
	if err != nil {
		return nil, err
	}

	for id := range shares {
		if _, ok := roster[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
	}

	var sum Amount
	for _, s := range shares {
		sum += s
	}
	if sum != exp.Amount {
		return nil, fmt.Errorf("%w: expense %s allocated %d of %d", ErrShareConservation, exp.ID, sum, exp.Amount)
	}
	return shares, nil
}

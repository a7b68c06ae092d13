package settlement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pid builds a participant id whose byte order matches n, so tie-break
// expectations in tests are easy to read.
func pid(n byte) uuid.UUID {
	var u uuid.UUID
	u[15] = n
	return u
}

func testRoster(ids ...uuid.UUID) map[uuid.UUID]Participant {
	roster := make(map[uuid.UUID]Participant, len(ids))
	for i, id := range ids {
		roster[id] = Participant{ID: id, Name: string(rune('A' + i))}
	}
	return roster
}

func TestAllocateEqual(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)
	roster := testRoster(a, b, c)

	t.Run("remainder_goes_to_lowest_ids", func(t *testing.T) {
		// $100.00 among three: one leftover cent lands on the first id.
		exp := Expense{
			ID:       uuid.New(),
			PaidBy:   a,
			Currency: "USD",
			Amount:   10000,
			Split:    SplitEqual,
			Weights:  map[uuid.UUID]int64{a: 1, b: 1, c: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		assert.Equal(t, Amount(3334), shares[a])
		assert.Equal(t, Amount(3333), shares[b])
		assert.Equal(t, Amount(3333), shares[c])
	})

	t.Run("even_division", func(t *testing.T) {
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   9000,
			Split:    SplitEqual,
			Weights:  map[uuid.UUID]int64{a: 1, b: 1, c: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		for _, id := range []uuid.UUID{a, b, c} {
			assert.Equal(t, Amount(3000), shares[id])
		}
	})

	t.Run("spread_at_most_one_minor_unit", func(t *testing.T) {
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   10007,
			Split:    SplitEqual,
			Weights:  map[uuid.UUID]int64{a: 1, b: 1, c: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		min, max := shares[a], shares[a]
		for _, s := range shares {
			if s < min {
				min = s
			}
			if s > max {
				max = s
			}
		}
		assert.LessOrEqual(t, max-min, Amount(1))
	})
}

func TestAllocateWeighted(t *testing.T) {
	a, b, c := pid(1), pid(2), pid(3)
	roster := testRoster(a, b, c)

	t.Run("proportional", func(t *testing.T) {
		// $90.00 with weights 2:1.
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   9000,
			Split:    SplitWeighted,
			Weights:  map[uuid.UUID]int64{a: 2, b: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		assert.Equal(t, Amount(6000), shares[a])
		assert.Equal(t, Amount(3000), shares[b])
	})

	t.Run("largest_remainder_wins_leftover", func(t *testing.T) {
		// $1.00 with weights 1:1:1 leaves one cent; equal remainders,
		// so ascending id decides.
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   100,
			Split:    SplitWeighted,
			Weights:  map[uuid.UUID]int64{a: 1, b: 1, c: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		assert.Equal(t, Amount(34), shares[a])
		assert.Equal(t, Amount(33), shares[b])
		assert.Equal(t, Amount(33), shares[c])
	})

	t.Run("skewed_weights", func(t *testing.T) {
		// $1.00 at 5:1: ideal shares 83.33 and 16.67, so the leftover
		// cent goes to the larger fractional remainder (b).
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   100,
			Split:    SplitWeighted,
			Weights:  map[uuid.UUID]int64{a: 5, b: 1},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		assert.Equal(t, Amount(83), shares[a])
		assert.Equal(t, Amount(17), shares[b])
	})

	t.Run("non_positive_weight", func(t *testing.T) {
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   100,
			Split:    SplitWeighted,
			Weights:  map[uuid.UUID]int64{a: 1, b: 0},
		}

		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrNonPositiveWeight)
	})
}

func TestAllocateItemized(t *testing.T) {
	a, b := pid(1), pid(2)
	roster := testRoster(a, b)

	t.Run("returns_precomputed_shares", func(t *testing.T) {
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   3300,
			Split:    SplitItemized,
			Shares:   map[uuid.UUID]Amount{a: 1100, b: 2200},
		}

		shares, err := Allocate(exp, roster)
		require.NoError(t, err)
		assert.Equal(t, exp.Shares, shares)
	})

	t.Run("sum_mismatch_is_fatal", func(t *testing.T) {
		exp := Expense{
			PaidBy:   a,
			Currency: "USD",
			Amount:   3300,
			Split:    SplitItemized,
			Shares:   map[uuid.UUID]Amount{a: 1100, b: 2100},
		}

		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrShareConservation)
	})
}

func TestAllocateErrors(t *testing.T) {
	a := pid(1)
	roster := testRoster(a)

	t.Run("non_positive_amount", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 0, Split: SplitEqual, Weights: map[uuid.UUID]int64{a: 1}}
		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrNonPositiveAmount)
	})

	t.Run("no_participants", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 100, Split: SplitEqual}
		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrNoParticipants)
	})

	t.Run("unknown_participant", func(t *testing.T) {
		stranger := pid(9)
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 100, Split: SplitEqual, Weights: map[uuid.UUID]int64{stranger: 1}}
		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrUnknownParticipant)
	})

	t.Run("unknown_split_type", func(t *testing.T) {
		exp := Expense{PaidBy: a, Currency: "USD", Amount: 100, Split: SplitType("percentage"), Weights: map[uuid.UUID]int64{a: 1}}
		_, err := Allocate(exp, roster)
		assert.ErrorIs(t, err, ErrUnknownSplitType)
	})
}

func TestAllocateConservation(t *testing.T) {
	ids := []uuid.UUID{pid(1), pid(2), pid(3), pid(4), pid(5), pid(6), pid(7)}
	roster := testRoster(ids...)

	cases := []struct {
		name    string
		amount  Amount
		split   SplitType
		weights map[uuid.UUID]int64
	}{
		{"equal_prime_amount", 9973, SplitEqual, map[uuid.UUID]int64{ids[0]: 1, ids[1]: 1, ids[2]: 1, ids[3]: 1, ids[4]: 1, ids[5]: 1, ids[6]: 1}},
		{"equal_one_cent", 1, SplitEqual, map[uuid.UUID]int64{ids[0]: 1, ids[1]: 1, ids[2]: 1}},
		{"weighted_awkward", 10001, SplitWeighted, map[uuid.UUID]int64{ids[0]: 3, ids[1]: 7, ids[2]: 11}},
		{"weighted_large", 123456789, SplitWeighted, map[uuid.UUID]int64{ids[0]: 1, ids[1]: 999983, ids[2]: 17}},
		{"weighted_single", 555, SplitWeighted, map[uuid.UUID]int64{ids[0]: 42}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exp := Expense{PaidBy: ids[0], Currency: "USD", Amount: tc.amount, Split: tc.split, Weights: tc.weights}
			shares, err := Allocate(exp, roster)
			require.NoError(t, err)

			var sum Amount
			for _, s := range shares {
				sum += s
			}
			assert.Equal(t, tc.amount, sum)
			assert.Len(t, shares, len(tc.weights))
		})
	}
}

package settlement

import (
	"fmt"

	"github.com/google/uuid"
)

// Item is one line on an itemized expense, equally sub-split among its
// assignees.
type Item struct {
	ID           uuid.UUID   `json:"id"`
	Description  string      `json:"description"`
	Amount       Amount      `json:"amount"`
	Participants []uuid.UUID `json:"participants"`
}

// ExtraKind distinguishes charges from discounts. Tax, tip, and fee all
// add; discount subtracts.
type ExtraKind string

const (
	ExtraTax      ExtraKind = "tax"
	ExtraTip      ExtraKind = "tip"
	ExtraFee      ExtraKind = "fee"
	ExtraDiscount ExtraKind = "discount"
)

// ExtraBase selects what an extra is distributed over: everyone's item
// subtotal, a single item's shares, or a flat equal split.
type ExtraBase string

const (
	BaseSubtotal ExtraBase = "subtotal"
	BaseItem     ExtraBase = "item"
	BaseFlat     ExtraBase = "flat"
)

// Extra is a tax, tip, fee, or discount applied on top of an itemized
// expense's line items.
type Extra struct {
	Kind   ExtraKind `json:"kind"`
	Base   ExtraBase `json:"base"`
	ItemID uuid.UUID `json:"item_id,omitempty"`
	Amount Amount    `json:"amount"`
}

// ComputeItemizedShares turns line items plus extras into the exact
// per-participant amounts carried on an itemized expense. Items are
// equally sub-split among their assignees; each extra is distributed
// proportionally to its base via the largest-remainder method; discounts
// are validated against their base and subtracted. The returned total is
// the sum of all shares and becomes the expense amount.
func ComputeItemizedShares(items []Item, extras []Extra) (map[uuid.UUID]Amount, Amount, error) {
	if len(items) == 0 {
		return nil, 0, ErrNoParticipants
	}

	shares := make(map[uuid.UUID]Amount)
	itemShares := make(map[uuid.UUID]map[uuid.UUID]Amount, len(items))
	subtotalShares := make(map[uuid.UUID]Amount)
	var subtotal Amount

	for _, item := range items {
		if item.Amount <= 0 {
			return nil, 0, fmt.Errorf("%w: item %q", ErrNonPositiveAmount, item.Description)
		}
		if len(item.Participants) == 0 {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnassignedItem, item.Description)
		}
		ones := make(map[uuid.UUID]int64, len(item.Participants))
		for _, id := range item.Participants {
			ones[id] = 1
		}
		split, err := apportion(item.Amount, ones)
		if err != nil {
			return nil, 0, err
		}
		itemShares[item.ID] = split
		for id, s := range split {
			shares[id] += s
			subtotalShares[id] += s
		}
		subtotal += item.Amount
	}

	total := subtotal
	for _, extra := range extras {
		if extra.Amount <= 0 {
			return nil, 0, fmt.Errorf("%w: %s", ErrNonPositiveExtra, extra.Kind)
		}

		var base map[uuid.UUID]Amount
		switch extra.Base {
		case BaseSubtotal:
			base = subtotalShares
		case BaseItem:
			b, ok := itemShares[extra.ItemID]
			if !ok {
				return nil, 0, fmt.Errorf("%w: %s", ErrUnknownItem, extra.ItemID)
			}
			base = b
		case BaseFlat:
			base = make(map[uuid.UUID]Amount, len(subtotalShares))
			for id := range subtotalShares {
				base[id] = 1
			}
		default:
			return nil, 0, fmt.Errorf("unknown extra base %q", extra.Base)
		}

		// Participants with a zero share of the base carry none of the
		// extra, so only positive shares enter the apportionment.
		weights := make(map[uuid.UUID]int64, len(base))
		var baseTotal Amount
		for id, s := range base {
			if s > 0 {
				weights[id] = int64(s)
				baseTotal += s
			}
		}
		if len(weights) == 0 {
			return nil, 0, fmt.Errorf("%w: %s has an empty base", ErrNonPositiveExtra, extra.Kind)
		}

		if extra.Kind == ExtraDiscount {
			if extra.Base != BaseFlat && extra.Amount > baseTotal {
				return nil, 0, fmt.Errorf("%w: discount %d over base %d", ErrDiscountExceedsBase, extra.Amount, baseTotal)
			}
		}

		split, err := apportion(extra.Amount, weights)
		if err != nil {
			return nil, 0, err
		}
		if extra.Kind == ExtraDiscount {
			for id, s := range split {
				shares[id] -= s
			}
			total -= extra.Amount
		} else {
			for id, s := range split {
				shares[id] += s
			}
			total += extra.Amount
		}
	}

	for id, s := range shares {
		if s < 0 {
			return nil, 0, fmt.Errorf("%w: participant %s driven below zero", ErrDiscountExceedsBase, id)
		}
	}
	return shares, total, nil
}

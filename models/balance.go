package models

import (
	"time"

	"tripsplit-backend/settlement"

	"github.com/google/uuid"
)

// TransferView is one transfer of a settlement summary, amounts formatted
// for the trip's currency.
type TransferView struct {
	From      uuid.UUID  `json:"from"`
	FromName  string     `json:"from_name"`
	To        uuid.UUID  `json:"to"`
	ToName    string     `json:"to_name"`
	Currency  string     `json:"currency"`
	Amount    string     `json:"amount"`
	Status    string     `json:"status"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// TotalView is one participant row of a settlement summary.
type TotalView struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
	Paid   string    `json:"paid"`
	Owed   string    `json:"owed"`
	Net    string    `json:"net"`
}

// SettlementSummaryResponse is returned for
// GET /api/trips/:id/settlement.
type SettlementSummaryResponse struct {
	TripID   uuid.UUID            `json:"trip_id"`
	TripName string               `json:"trip_name"`
	Currency string               `json:"currency"`
	Totals   []TotalView          `json:"totals"`
	Active   []TransferView       `json:"active"`
	Settled  []TransferView       `json:"settled"`
	Warnings []settlement.Warning `json:"warnings,omitempty"`
}

// ContributionView explains one expense's part in a transfer.
type ContributionView struct {
	ExpenseID   uuid.UUID `json:"expense_id"`
	Description string    `json:"description"`
	FromPaid    string    `json:"from_paid"`
	FromOwes    string    `json:"from_owes"`
	ToPaid      string    `json:"to_paid"`
	ToOwes      string    `json:"to_owes"`
	Net         string    `json:"net"`
}

// TransferBreakdownResponse is returned for
// GET /api/trips/:id/settlement/explain.
type TransferBreakdownResponse struct {
	Transfer      TransferView       `json:"transfer"`
	Contributions []ContributionView `json:"contributions"`
	Relevant      []ContributionView `json:"relevant"`
}

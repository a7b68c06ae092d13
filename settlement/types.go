package settlement

import (
	"time"

	"github.com/google/uuid"
)

// Participant is a snapshot of a trip member as the engine sees it.
// Identity is the UUID; everything else is display metadata.
type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// SplitType selects how an expense is divided among its participants.
type SplitType string

const (
	SplitEqual    SplitType = "equal"
	SplitWeighted SplitType = "weighted"
	SplitItemized SplitType = "itemized"
)

// Expense is the engine's read-only view of one expense. Participants of
// the expense are the keys of Weights (equal/weighted) or Shares
// (itemized). The engine never mutates an Expense.
type Expense struct {
	ID       uuid.UUID            `json:"id"`
	TripID   uuid.UUID            `json:"trip_id"`
	PaidBy   uuid.UUID            `json:"paid_by"`
	Currency string               `json:"currency"`
	Amount   Amount               `json:"amount"`
	Split    SplitType            `json:"split"`
	Weights  map[uuid.UUID]int64  `json:"weights,omitempty"`
	Shares   map[uuid.UUID]Amount `json:"shares,omitempty"`
}

// participantIDs returns the ids the expense is split among.
func (e Expense) participantIDs() []uuid.UUID {
	switch e.Split {
	case SplitItemized:
		return sortedIDs(e.Shares)
	default:
		return sortedIDs(e.Weights)
	}
}

// TransferStatus tracks whether a computed transfer has been confirmed
// paid by the user.
type TransferStatus string

const (
	StatusActive  TransferStatus = "active"
	StatusSettled TransferStatus = "settled"
)

// TransferKey identifies a transfer across recomputations. The key is
// direction-sensitive: (A->B, USD) and (B->A, USD) are distinct keys.
type TransferKey struct {
	From     uuid.UUID `json:"from"`
	To       uuid.UUID `json:"to"`
	Currency string    `json:"currency"`
}

// Transfer is one peer-to-peer payment that settles part of a currency's
// debt graph.
type Transfer struct {
	From      uuid.UUID      `json:"from"`
	To        uuid.UUID      `json:"to"`
	Currency  string         `json:"currency"`
	Amount    Amount         `json:"amount"`
	Status    TransferStatus `json:"status"`
	SettledAt *time.Time     `json:"settled_at,omitempty"`
}

// Key returns the transfer's identity key.
func (t Transfer) Key() TransferKey {
	return TransferKey{From: t.From, To: t.To, Currency: t.Currency}
}

// Position is one participant's aggregate standing in a single currency.
type Position struct {
	Paid Amount `json:"paid"`
	Owed Amount `json:"owed"`
}

// Net is positive when the participant is owed money, negative when they
// owe money.
func (p Position) Net() Amount {
	return p.Paid - p.Owed
}

// Contribution explains how one expense moves money between a transfer's
// two endpoints. Net is measured in the from->to direction.
type Contribution struct {
	ExpenseID uuid.UUID `json:"expense_id"`
	FromPaid  Amount    `json:"from_paid"`
	FromOwes  Amount    `json:"from_owes"`
	ToPaid    Amount    `json:"to_paid"`
	ToOwes    Amount    `json:"to_owes"`
	Net       Amount    `json:"net"`
}

// TransferBreakdown decomposes a transfer into per-expense contributions.
// It is a transparency view: because debt simplification may route a debt
// through a third party, the relevant contributions need not sum to the
// transfer amount.
type TransferBreakdown struct {
	Transfer      Transfer       `json:"transfer"`
	Contributions []Contribution `json:"contributions"`
	Relevant      []Contribution `json:"relevant"`
}

// WarningCode classifies data-integrity warnings attached to a result.
type WarningCode string

const (
	// WarnUnbalancedLedger: a currency's net balances did not sum to zero.
	WarnUnbalancedLedger WarningCode = "unbalanced_ledger"
	// WarnSettledAmountDrift: a settled transfer's recomputed amount
	// changed, so its confirmation was reset to active.
	WarnSettledAmountDrift WarningCode = "settled_amount_drift"
)

// Warning is a structured, non-fatal finding. Processing continues with
// best effort; callers decide how to surface it.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
	Key     *TransferKey `json:"key,omitempty"`
}

// ParticipantTotal is one row of a settlement summary.
type ParticipantTotal struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Name          string    `json:"name"`
	Paid          Amount    `json:"paid"`
	Owed          Amount    `json:"owed"`
	Net           Amount    `json:"net"`
}

// Summary is the full output of one settlement computation for one
// currency.
type Summary struct {
	Currency string             `json:"currency"`
	Totals   []ParticipantTotal `json:"totals"`
	Active   []Transfer         `json:"active"`
	Settled  []Transfer         `json:"settled"`
	Dropped  []Transfer         `json:"dropped,omitempty"`
	Warnings []Warning          `json:"warnings,omitempty"`
}

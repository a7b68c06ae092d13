package models

import (
	"strings"
	"time"

	"tripsplit-backend/settlement"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Expense struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TripID      uuid.UUID      `gorm:"type:uuid;index" json:"trip_id"`
	Trip        Trip           `gorm:"foreignKey:TripID" json:"-"`
	PaidBy      uuid.UUID      `gorm:"type:uuid" json:"paid_by"`
	Payer       User           `gorm:"foreignKey:PaidBy" json:"payer,omitempty"`
	Description string         `gorm:"not null;size:255" json:"description"`
	// AmountMinor is the exact total in the currency's minor unit.
	AmountMinor int64          `gorm:"not null" json:"amount_minor"`
	Currency    string         `gorm:"not null;size:3" json:"currency"`
	Category    string         `gorm:"size:50" json:"category"` // food, transport, lodging, activities, other
	Split       string         `gorm:"not null;size:20" json:"split"` // equal, weighted, itemized
	Notes       string         `json:"notes,omitempty"`
	ExpenseDate time.Time      `gorm:"type:date;default:CURRENT_DATE" json:"expense_date"`
	Shares      []ExpenseShare `gorm:"foreignKey:ExpenseID" json:"shares,omitempty"`
	Items       []ExpenseItem  `gorm:"foreignKey:ExpenseID" json:"items,omitempty"`
	Extras      []ExpenseExtra `gorm:"foreignKey:ExpenseID" json:"extras,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ToEngine converts the stored expense plus its shares into the engine's
// snapshot form.
func (e *Expense) ToEngine(shares []ExpenseShare) settlement.Expense {
	exp := settlement.Expense{
		ID:       e.ID,
		TripID:   e.TripID,
		PaidBy:   e.PaidBy,
		Currency: e.Currency,
		Amount:   settlement.Amount(e.AmountMinor),
		Split:    settlement.SplitType(e.Split),
	}
	switch exp.Split {
	case settlement.SplitItemized:
		exp.Shares = make(map[uuid.UUID]settlement.Amount, len(shares))
		for _, s := range shares {
			exp.Shares[s.UserID] = settlement.Amount(s.OwedMinor)
		}
	default:
		exp.Weights = make(map[uuid.UUID]int64, len(shares))
		for _, s := range shares {
			exp.Weights[s.UserID] = s.Weight
		}
	}
	return exp
}

// ExpenseShare is one participant's stake in an expense: the weight that
// drives allocation plus the exact owed/paid amounts it produced.
type ExpenseShare struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID uuid.UUID `gorm:"type:uuid;index" json:"expense_id"`
	UserID    uuid.UUID `gorm:"type:uuid" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Weight    int64     `gorm:"not null;default:1" json:"weight"`
	OwedMinor int64     `gorm:"not null" json:"owed_minor"`
	PaidMinor int64     `gorm:"not null;default:0" json:"paid_minor"`
	CreatedAt time.Time `json:"created_at"`
}

func (es *ExpenseShare) BeforeCreate(tx *gorm.DB) error {
	if es.ID == uuid.Nil {
		es.ID = uuid.New()
	}
	return nil
}

// ExpenseItem is one line of an itemized expense. Assignees holds the
// participant ids as a comma-separated list.
type ExpenseItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID   uuid.UUID `gorm:"type:uuid;index" json:"expense_id"`
	Description string    `gorm:"not null;size:255" json:"description"`
	AmountMinor int64     `gorm:"not null" json:"amount_minor"`
	Assignees   string    `gorm:"not null" json:"assignees"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ei *ExpenseItem) BeforeCreate(tx *gorm.DB) error {
	if ei.ID == uuid.Nil {
		ei.ID = uuid.New()
	}
	return nil
}

// AssigneeIDs parses the stored CSV into participant ids.
func (ei *ExpenseItem) AssigneeIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, part := range strings.Split(ei.Assignees, ",") {
		if id, err := uuid.Parse(strings.TrimSpace(part)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExpenseExtra is a tax, tip, fee, or discount on an itemized expense.
type ExpenseExtra struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ExpenseID   uuid.UUID  `gorm:"type:uuid;index" json:"expense_id"`
	Kind        string     `gorm:"not null;size:20" json:"kind"` // tax, tip, fee, discount
	Base        string     `gorm:"not null;size:20" json:"base"` // subtotal, item, flat
	ItemID      *uuid.UUID `gorm:"type:uuid" json:"item_id,omitempty"`
	AmountMinor int64      `gorm:"not null" json:"amount_minor"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (ee *ExpenseExtra) BeforeCreate(tx *gorm.DB) error {
	if ee.ID == uuid.Nil {
		ee.ID = uuid.New()
	}
	return nil
}

// Request structs. Amounts travel as decimal strings ("100.00") and are
// parsed into minor units against the expense currency.
type CreateExpenseRequest struct {
	Description  string             `json:"description" binding:"required"`
	PaidBy       string             `json:"paid_by"` // defaults to the requester
	Amount       string             `json:"amount"`  // required for equal/weighted; derived for itemized
	Currency     string             `json:"currency"`
	Category     string             `json:"category"`
	Split        string             `json:"split" binding:"required,oneof=equal weighted itemized"`
	Notes        string             `json:"notes"`
	ExpenseDate  string             `json:"expense_date"` // YYYY-MM-DD
	Participants []ParticipantInput `json:"participants"` // equal, weighted
	Items        []ItemInput        `json:"items"`        // itemized
	Extras       []ExtraInput       `json:"extras"`       // itemized
}

type UpdateExpenseRequest struct {
	Description  string             `json:"description"`
	Amount       string             `json:"amount"`
	Category     string             `json:"category"`
	Split        string             `json:"split" binding:"omitempty,oneof=equal weighted itemized"`
	Notes        string             `json:"notes"`
	Participants []ParticipantInput `json:"participants"`
	Items        []ItemInput        `json:"items"`
	Extras       []ExtraInput       `json:"extras"`
}

type ParticipantInput struct {
	UserID string `json:"user_id" binding:"required"`
	Weight int64  `json:"weight"` // ignored for equal splits
}

type ItemInput struct {
	Description  string   `json:"description" binding:"required"`
	Amount       string   `json:"amount" binding:"required"`
	Participants []string `json:"participants" binding:"required"`
}

type ExtraInput struct {
	Kind string `json:"kind" binding:"required,oneof=tax tip fee discount"`
	Base string `json:"base" binding:"required,oneof=subtotal item flat"`
	// ItemIndex points at the items array entry an item-based extra
	// applies to.
	ItemIndex *int   `json:"item_index"`
	Amount    string `json:"amount" binding:"required"`
}

// Response structs
type ExpenseResponse struct {
	ID          uuid.UUID       `json:"id"`
	TripID      uuid.UUID       `json:"trip_id"`
	PaidBy      uuid.UUID       `json:"paid_by"`
	PayerName   string          `json:"payer_name"`
	Description string          `json:"description"`
	Amount      string          `json:"amount"`
	Currency    string          `json:"currency"`
	Category    string          `json:"category"`
	Split       string          `json:"split"`
	Notes       string          `json:"notes,omitempty"`
	ExpenseDate time.Time       `json:"expense_date"`
	Shares      []ShareResponse `json:"shares"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ShareResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	UserName string    `json:"user_name"`
	Weight   int64     `json:"weight"`
	Owed     string    `json:"owed"`
	Paid     string    `json:"paid"`
}

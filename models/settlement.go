package models

import (
	"time"

	"tripsplit-backend/settlement"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SettlementRecord is the persisted confirmation state for one computed
// transfer. The identity key (trip, from, to, currency) is
// direction-sensitive; amounts are rewritten on every recomputation while
// Status and SettledAt carry the user's confirmation across runs.
type SettlementRecord struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TripID      uuid.UUID  `gorm:"type:uuid;uniqueIndex:uq_settlement_key" json:"trip_id"`
	FromID      uuid.UUID  `gorm:"type:uuid;uniqueIndex:uq_settlement_key" json:"from_id"`
	ToID        uuid.UUID  `gorm:"type:uuid;uniqueIndex:uq_settlement_key" json:"to_id"`
	Currency    string     `gorm:"size:3;uniqueIndex:uq_settlement_key" json:"currency"`
	AmountMinor int64      `gorm:"not null" json:"amount_minor"`
	Status      string     `gorm:"not null;default:active;size:10" json:"status"` // active, settled
	SettledAt   *time.Time `json:"settled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *SettlementRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ToTransfer converts the persisted record into the engine's form.
func (s *SettlementRecord) ToTransfer() settlement.Transfer {
	return settlement.Transfer{
		From:      s.FromID,
		To:        s.ToID,
		Currency:  s.Currency,
		Amount:    settlement.Amount(s.AmountMinor),
		Status:    settlement.TransferStatus(s.Status),
		SettledAt: s.SettledAt,
	}
}

// RecordFromTransfer builds a persistable record from an engine transfer.
func RecordFromTransfer(tripID uuid.UUID, t settlement.Transfer) SettlementRecord {
	return SettlementRecord{
		TripID:      tripID,
		FromID:      t.From,
		ToID:        t.To,
		Currency:    t.Currency,
		AmountMinor: int64(t.Amount),
		Status:      string(t.Status),
		SettledAt:   t.SettledAt,
	}
}

// Request structs
type SettleTransferRequest struct {
	From     string `json:"from" binding:"required"`
	To       string `json:"to" binding:"required"`
	Currency string `json:"currency" binding:"required"`
}

package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tripsplit-backend/logger"
	"tripsplit-backend/models"
	"tripsplit-backend/settlement"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const summaryCacheTTL = 5 * time.Minute

var ErrTripNotFound = errors.New("trip not found")

// SettlementService runs the settlement engine over a trip's stored
// expenses and owns the persisted confirmation records. The engine itself
// is pure; this service supplies the snapshot, stores the reconciled
// state, and caches summaries.
type SettlementService struct {
	db    *gorm.DB
	cache *redis.Client
}

func NewSettlementService(db *gorm.DB, cache *redis.Client) *SettlementService {
	return &SettlementService{db: db, cache: cache}
}

var settlementSvc *SettlementService

// InitSettlementService wires the singleton used by the HTTP handlers.
func InitSettlementService(db *gorm.DB, cache *redis.Client) {
	settlementSvc = NewSettlementService(db, cache)
}

func GetSettlementService() *SettlementService {
	return settlementSvc
}

func summaryCacheKey(tripID uuid.UUID, currency string) string {
	return fmt.Sprintf("settlement:%s:%s", tripID, currency)
}

// snapshot loads everything the engine needs for one trip.
func (s *SettlementService) snapshot(tripID uuid.UUID) (*models.Trip, []settlement.Participant, []settlement.Expense, map[uuid.UUID]string, error) {
	var trip models.Trip
	if err := s.db.Preload("Members.User").First(&trip, "id = ?", tripID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, nil, ErrTripNotFound
		}
		return nil, nil, nil, nil, err
	}

	participants := make([]settlement.Participant, 0, len(trip.Members))
	for _, m := range trip.Members {
		participants = append(participants, settlement.Participant{ID: m.UserID, Name: m.User.Name})
	}

	var stored []models.Expense
	if err := s.db.Preload("Shares").Where("trip_id = ?", tripID).
		Order("expense_date ASC, created_at ASC").Find(&stored).Error; err != nil {
		return nil, nil, nil, nil, err
	}

	expenses := make([]settlement.Expense, 0, len(stored))
	descriptions := make(map[uuid.UUID]string, len(stored))
	for _, e := range stored {
		expenses = append(expenses, e.ToEngine(e.Shares))
		descriptions[e.ID] = e.Description
	}
	return &trip, participants, expenses, descriptions, nil
}

// ComputeForTrip recomputes the settlement for one currency, reconciles
// it with persisted confirmations, stores the merged state, and returns
// the summary view. Identical inputs yield identical outputs, so a cached
// summary is served when the trip has not changed since.
func (s *SettlementService) ComputeForTrip(ctx context.Context, tripID uuid.UUID, currency string) (*models.SettlementSummaryResponse, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, summaryCacheKey(tripID, currency)).Bytes(); err == nil {
			var cached models.SettlementSummaryResponse
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		}
	}

	trip, participants, expenses, _, err := s.snapshot(tripID)
	if err != nil {
		return nil, err
	}
	if !trip.AllowsCurrency(currency) {
		return nil, fmt.Errorf("trip does not settle in %s", currency)
	}

	var records []models.SettlementRecord
	if err := s.db.Where("trip_id = ? AND currency = ?", tripID, currency).Find(&records).Error; err != nil {
		return nil, err
	}
	prior := make([]settlement.Transfer, 0, len(records))
	for _, r := range records {
		prior = append(prior, r.ToTransfer())
	}

	summary, err := settlement.ComputeSettlement(expenses, participants, currency, prior)
	if err != nil {
		// A conservation failure here is corrupted data or an engine
		// bug; surface it loudly instead of rendering a wrong view.
		logger.Get().Errorw("settlement computation failed",
			"trip_id", tripID, "currency", currency, "error", err)
		return nil, err
	}
	for _, w := range summary.Warnings {
		logger.Get().Warnw("settlement warning",
			"trip_id", tripID, "currency", currency, "code", w.Code, "message", w.Message)
		if w.Code == settlement.WarnSettledAmountDrift && w.Key != nil {
			s.notifyDrift(trip, *w.Key, summary.Active)
		}
	}

	if err := s.persist(tripID, currency, summary); err != nil {
		return nil, err
	}

	response := s.buildSummaryResponse(trip, summary)
	if s.cache != nil {
		if raw, err := json.Marshal(response); err == nil {
			s.cache.Set(ctx, summaryCacheKey(tripID, currency), raw, summaryCacheTTL)
		}
	}
	return response, nil
}

// persist replaces the stored records for one (trip, currency) run with
// the reconciled result. Dropped records are deleted, surviving keys are
// upserted in place.
func (s *SettlementService) persist(tripID uuid.UUID, currency string, summary settlement.Summary) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, dropped := range summary.Dropped {
			if err := tx.Where("trip_id = ? AND from_id = ? AND to_id = ? AND currency = ?",
				tripID, dropped.From, dropped.To, currency).
				Delete(&models.SettlementRecord{}).Error; err != nil {
				return err
			}
		}

		for _, t := range append(append([]settlement.Transfer{}, summary.Active...), summary.Settled...) {
			var existing models.SettlementRecord
			err := tx.Where("trip_id = ? AND from_id = ? AND to_id = ? AND currency = ?",
				tripID, t.From, t.To, currency).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				record := models.RecordFromTransfer(tripID, t)
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				updates := map[string]interface{}{
					"amount_minor": int64(t.Amount),
					"status":       string(t.Status),
					"settled_at":   t.SettledAt,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// Explain decomposes one persisted transfer into per-expense
// contributions.
func (s *SettlementService) Explain(tripID uuid.UUID, key settlement.TransferKey) (*models.TransferBreakdownResponse, error) {
	trip, participants, expenses, descriptions, err := s.snapshot(tripID)
	if err != nil {
		return nil, err
	}

	var record models.SettlementRecord
	if err := s.db.Where("trip_id = ? AND from_id = ? AND to_id = ? AND currency = ?",
		tripID, key.From, key.To, key.Currency).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlement.ErrTransferNotFound
		}
		return nil, err
	}

	roster := settlement.Roster(participants)
	breakdown, err := settlement.ExplainTransfer(record.ToTransfer(), expenses, roster)
	if err != nil {
		return nil, err
	}

	view := func(cs []settlement.Contribution) []models.ContributionView {
		out := make([]models.ContributionView, 0, len(cs))
		for _, c := range cs {
			out = append(out, models.ContributionView{
				ExpenseID:   c.ExpenseID,
				Description: descriptions[c.ExpenseID],
				FromPaid:    settlement.FormatAmount(c.FromPaid, key.Currency),
				FromOwes:    settlement.FormatAmount(c.FromOwes, key.Currency),
				ToPaid:      settlement.FormatAmount(c.ToPaid, key.Currency),
				ToOwes:      settlement.FormatAmount(c.ToOwes, key.Currency),
				Net:         settlement.FormatAmount(c.Net, key.Currency),
			})
		}
		return out
	}

	names := s.nameIndex(trip)
	return &models.TransferBreakdownResponse{
		Transfer:      s.transferView(breakdown.Transfer, names),
		Contributions: view(breakdown.Contributions),
		Relevant:      view(breakdown.Relevant),
	}, nil
}

// MarkSettled records a user confirmation that a transfer was paid.
// Settling twice is a no-op.
func (s *SettlementService) MarkSettled(ctx context.Context, tripID uuid.UUID, key settlement.TransferKey) (*models.SettlementRecord, error) {
	return s.setStatus(ctx, tripID, key, settlement.StatusSettled)
}

// MarkUnsettled reopens a confirmed transfer.
func (s *SettlementService) MarkUnsettled(ctx context.Context, tripID uuid.UUID, key settlement.TransferKey) (*models.SettlementRecord, error) {
	return s.setStatus(ctx, tripID, key, settlement.StatusActive)
}

func (s *SettlementService) setStatus(ctx context.Context, tripID uuid.UUID, key settlement.TransferKey, status settlement.TransferStatus) (*models.SettlementRecord, error) {
	var record models.SettlementRecord
	if err := s.db.Where("trip_id = ? AND from_id = ? AND to_id = ? AND currency = ?",
		tripID, key.From, key.To, key.Currency).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, settlement.ErrTransferNotFound
		}
		return nil, err
	}

	if record.Status != string(status) {
		record.Status = string(status)
		if status == settlement.StatusSettled {
			now := time.Now().UTC()
			record.SettledAt = &now
		} else {
			record.SettledAt = nil
		}
		if err := s.db.Model(&record).Select("status", "settled_at").Updates(&record).Error; err != nil {
			return nil, err
		}
	}

	s.InvalidateCache(ctx, tripID, key.Currency)
	return &record, nil
}

// InvalidateCache drops the cached summary after any write that can
// change the settlement view.
func (s *SettlementService) InvalidateCache(ctx context.Context, tripID uuid.UUID, currencies ...string) {
	if s.cache == nil {
		return
	}
	for _, currency := range currencies {
		s.cache.Del(ctx, summaryCacheKey(tripID, currency))
	}
}

// notifyDrift alerts both parties of a reopened confirmation.
// Best-effort: missing users or a vanished transfer just skip the notice.
func (s *SettlementService) notifyDrift(trip *models.Trip, key settlement.TransferKey, active []settlement.Transfer) {
	var amount settlement.Amount
	for _, t := range active {
		if t.Key() == key {
			amount = t.Amount
			break
		}
	}
	if amount == 0 {
		return
	}

	var payer, payee models.User
	if err := s.db.First(&payer, key.From).Error; err != nil {
		return
	}
	if err := s.db.First(&payee, key.To).Error; err != nil {
		return
	}
	go GetNotificationService().NotifySettledDrift(*trip, payer, payee, int64(amount), key.Currency)
}

func (s *SettlementService) nameIndex(trip *models.Trip) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(trip.Members))
	for _, m := range trip.Members {
		names[m.UserID] = m.User.Name
	}
	return names
}

func (s *SettlementService) transferView(t settlement.Transfer, names map[uuid.UUID]string) models.TransferView {
	return models.TransferView{
		From:      t.From,
		FromName:  names[t.From],
		To:        t.To,
		ToName:    names[t.To],
		Currency:  t.Currency,
		Amount:    settlement.FormatAmount(t.Amount, t.Currency),
		Status:    string(t.Status),
		SettledAt: t.SettledAt,
	}
}

func (s *SettlementService) buildSummaryResponse(trip *models.Trip, summary settlement.Summary) *models.SettlementSummaryResponse {
	names := s.nameIndex(trip)

	totals := make([]models.TotalView, 0, len(summary.Totals))
	for _, t := range summary.Totals {
		totals = append(totals, models.TotalView{
			UserID: t.ParticipantID,
			Name:   t.Name,
			Paid:   settlement.FormatAmount(t.Paid, summary.Currency),
			Owed:   settlement.FormatAmount(t.Owed, summary.Currency),
			Net:    settlement.FormatAmount(t.Net, summary.Currency),
		})
	}

	views := func(ts []settlement.Transfer) []models.TransferView {
		out := make([]models.TransferView, 0, len(ts))
		for _, t := range ts {
			out = append(out, s.transferView(t, names))
		}
		return out
	}

	return &models.SettlementSummaryResponse{
		TripID:   trip.ID,
		TripName: trip.Name,
		Currency: summary.Currency,
		Totals:   totals,
		Active:   views(summary.Active),
		Settled:  views(summary.Settled),
		Warnings: summary.Warnings,
	}
}

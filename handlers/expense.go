package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tripsplit-backend/database"
	"tripsplit-backend/models"
	"tripsplit-backend/services"
	"tripsplit-backend/settlement"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// expensePlan is a fully validated expense ready to persist: the expense
// row plus the share, item, and extra rows the allocation produced.
type expensePlan struct {
	expense models.Expense
	shares  []models.ExpenseShare
	items   []models.ExpenseItem
	extras  []models.ExpenseExtra
}

// POST /api/trips/:id/expenses
func CreateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid trip ID")
		return
	}

	if !isMember(tripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var trip models.Trip
	if err := database.DB.Preload("Members.User").First(&trip, tripID).Error; err != nil {
		utils.NotFound(c, "Trip not found")
		return
	}

	plan, verrs, err := assembleExpense(&trip, userID, req)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if len(verrs) > 0 {
		utils.ValidationFailed(c, verrs)
		return
	}

	if err := persistExpense(plan); err != nil {
		utils.InternalError(c, "Failed to create expense")
		return
	}

	services.GetSettlementService().InvalidateCache(context.Background(), tripID, plan.expense.Currency)

	var payer models.User
	database.DB.First(&payer, plan.expense.PaidBy)
	database.DB.Create(&models.Activity{
		TripID:      tripID,
		UserID:      userID,
		Type:        "expense_added",
		ReferenceID: plan.expense.ID,
		Description: fmt.Sprintf("%s added %q (%s %s)", payer.Name, plan.expense.Description,
			plan.expense.Currency, settlement.FormatAmount(settlement.Amount(plan.expense.AmountMinor), plan.expense.Currency)),
	})

	go services.GetNotificationService().NotifyExpenseAdded(plan.expense, plan.shares, payer, trip)

	utils.SuccessResponse(c, http.StatusCreated, "Expense added", buildExpenseResponse(plan.expense.ID))
}

// POST /api/trips/:id/expenses/validate — dry-run an expense without
// persisting anything.
func ValidateExpenseRequest(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid trip ID")
		return
	}

	if !isMember(tripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var trip models.Trip
	if err := database.DB.Preload("Members.User").First(&trip, tripID).Error; err != nil {
		utils.NotFound(c, "Trip not found")
		return
	}

	plan, verrs, err := assembleExpense(&trip, userID, req)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if len(verrs) > 0 {
		utils.ValidationFailed(c, verrs)
		return
	}

	names := memberNames(&trip)
	shares := make([]models.ShareResponse, 0, len(plan.shares))
	for _, s := range plan.shares {
		shares = append(shares, models.ShareResponse{
			UserID:   s.UserID,
			UserName: names[s.UserID],
			Weight:   s.Weight,
			Owed:     settlement.FormatAmount(settlement.Amount(s.OwedMinor), plan.expense.Currency),
			Paid:     settlement.FormatAmount(settlement.Amount(s.PaidMinor), plan.expense.Currency),
		})
	}

	utils.SuccessResponse(c, http.StatusOK, "Expense is valid", gin.H{
		"amount":   settlement.FormatAmount(settlement.Amount(plan.expense.AmountMinor), plan.expense.Currency),
		"currency": plan.expense.Currency,
		"split":    plan.expense.Split,
		"shares":   shares,
	})
}

// GET /api/trips/:id/expenses
func GetTripExpenses(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid trip ID")
		return
	}

	if !isMember(tripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	query := database.DB.Where("trip_id = ?", tripID)
	if currency := strings.ToUpper(c.Query("currency")); currency != "" {
		query = query.Where("currency = ?", currency)
	}

	var expenses []models.Expense
	query.Order("expense_date DESC, created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&expenses)

	var responses []models.ExpenseResponse
	for _, e := range expenses {
		responses = append(responses, buildExpenseResponse(e.ID))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/expenses/:id
func GetExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.TripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", buildExpenseResponse(expenseID))
}

// PUT /api/expenses/:id
func UpdateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.TripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}
	if len(updates) > 0 {
		database.DB.Model(&expense).Updates(updates)
	}

	// Any change to the amount, split policy, or participant set forces a
	// full reallocation.
	if req.Amount != "" || req.Split != "" || len(req.Participants) > 0 || len(req.Items) > 0 {
		database.DB.First(&expense, expenseID)

		var trip models.Trip
		if err := database.DB.Preload("Members.User").First(&trip, expense.TripID).Error; err != nil {
			utils.NotFound(c, "Trip not found")
			return
		}

		createReq, err := mergeUpdateRequest(&expense, req)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}

		plan, verrs, err := assembleExpense(&trip, expense.PaidBy, createReq)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}
		if len(verrs) > 0 {
			utils.ValidationFailed(c, verrs)
			return
		}

		// Keep the row identity, swap the allocation.
		plan.expense.ID = expense.ID
		for i := range plan.shares {
			plan.shares[i].ExpenseID = expense.ID
		}
		for i := range plan.items {
			plan.items[i].ExpenseID = expense.ID
		}
		for i := range plan.extras {
			plan.extras[i].ExpenseID = expense.ID
		}
		if err := replaceAllocation(&expense, plan); err != nil {
			utils.InternalError(c, "Failed to update expense")
			return
		}
	}

	services.GetSettlementService().InvalidateCache(context.Background(), expense.TripID, expense.Currency)

	var editor models.User
	database.DB.First(&editor, userID)
	database.DB.Create(&models.Activity{
		TripID:      expense.TripID,
		UserID:      userID,
		Type:        "expense_updated",
		ReferenceID: expense.ID,
		Description: fmt.Sprintf("%s updated %q", editor.Name, expense.Description),
	})

	utils.SuccessResponse(c, http.StatusOK, "Expense updated", buildExpenseResponse(expense.ID))
}

// DELETE /api/expenses/:id
func DeleteExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.TripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	var deleter models.User
	database.DB.First(&deleter, userID)
	database.DB.Create(&models.Activity{
		TripID:      expense.TripID,
		UserID:      userID,
		Type:        "expense_deleted",
		Description: fmt.Sprintf("%s deleted %q (%s %s)", deleter.Name, expense.Description,
			expense.Currency, settlement.FormatAmount(settlement.Amount(expense.AmountMinor), expense.Currency)),
	})

	database.DB.Where("expense_id = ?", expenseID).Delete(&models.ExpenseShare{})
	database.DB.Where("expense_id = ?", expenseID).Delete(&models.ExpenseItem{})
	database.DB.Where("expense_id = ?", expenseID).Delete(&models.ExpenseExtra{})
	database.DB.Delete(&expense)

	services.GetSettlementService().InvalidateCache(context.Background(), expense.TripID, expense.Currency)

	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}

// assembleExpense validates a request against the trip and runs the
// allocation. Validation errors are the client's to fix; a plain error
// means the input never reached the engine.
func assembleExpense(trip *models.Trip, requester uuid.UUID, req models.CreateExpenseRequest) (*expensePlan, []settlement.ValidationError, error) {
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = trip.DefaultCurrency()
	}
	if !trip.AllowsCurrency(currency) {
		return nil, nil, fmt.Errorf("trip does not use currency %s", currency)
	}

	paidBy := requester
	if req.PaidBy != "" {
		id, err := uuid.Parse(req.PaidBy)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid paid_by: %s", req.PaidBy)
		}
		paidBy = id
	}

	expenseDate := time.Now()
	if req.ExpenseDate != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpenseDate)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid expense_date: %s", req.ExpenseDate)
		}
		expenseDate = parsed
	}

	participants := make([]settlement.Participant, 0, len(trip.Members))
	for _, m := range trip.Members {
		participants = append(participants, settlement.Participant{ID: m.UserID, Name: m.User.Name})
	}
	roster := settlement.Roster(participants)

	plan := &expensePlan{
		expense: models.Expense{
			ID:          uuid.New(),
			TripID:      trip.ID,
			PaidBy:      paidBy,
			Description: req.Description,
			Currency:    currency,
			Category:    req.Category,
			Split:       req.Split,
			Notes:       req.Notes,
			ExpenseDate: expenseDate,
		},
	}

	engineExp := settlement.Expense{
		ID:       plan.expense.ID,
		TripID:   trip.ID,
		PaidBy:   paidBy,
		Currency: currency,
		Split:    settlement.SplitType(req.Split),
	}

	switch engineExp.Split {
	case settlement.SplitEqual, settlement.SplitWeighted:
		amount, err := settlement.ParseAmount(req.Amount, currency)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid amount %q: %w", req.Amount, err)
		}
		engineExp.Amount = amount
		plan.expense.AmountMinor = int64(amount)

		inputs := req.Participants
		if len(inputs) == 0 {
			// Default: split across the whole trip.
			for _, m := range trip.Members {
				inputs = append(inputs, models.ParticipantInput{UserID: m.UserID.String(), Weight: 1})
			}
		}
		weights := make(map[uuid.UUID]int64, len(inputs))
		for _, p := range inputs {
			id, err := uuid.Parse(p.UserID)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid participant id: %s", p.UserID)
			}
			w := p.Weight
			if engineExp.Split == settlement.SplitEqual {
				w = 1
			}
			weights[id] = w
		}
		engineExp.Weights = weights

		if verrs := settlement.ValidateExpense(engineExp, roster); len(verrs) > 0 {
			return nil, verrs, nil
		}

		owed, err := settlement.Allocate(engineExp, roster)
		if err != nil {
			return nil, nil, err
		}
		plan.shares = shareRows(plan.expense, owed, weights)

	case settlement.SplitItemized:
		items := make([]settlement.Item, 0, len(req.Items))
		for _, in := range req.Items {
			amount, err := settlement.ParseAmount(in.Amount, currency)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid item amount %q: %w", in.Amount, err)
			}
			assignees := make([]uuid.UUID, 0, len(in.Participants))
			for _, p := range in.Participants {
				id, err := uuid.Parse(p)
				if err != nil {
					return nil, nil, fmt.Errorf("invalid participant id: %s", p)
				}
				assignees = append(assignees, id)
			}
			items = append(items, settlement.Item{
				ID:           uuid.New(),
				Description:  in.Description,
				Amount:       amount,
				Participants: assignees,
			})
		}

		extras := make([]settlement.Extra, 0, len(req.Extras))
		for _, in := range req.Extras {
			amount, err := settlement.ParseAmount(in.Amount, currency)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid extra amount %q: %w", in.Amount, err)
			}
			extra := settlement.Extra{
				Kind:   settlement.ExtraKind(in.Kind),
				Base:   settlement.ExtraBase(in.Base),
				Amount: amount,
			}
			if extra.Base == settlement.BaseItem {
				if in.ItemIndex == nil || *in.ItemIndex < 0 || *in.ItemIndex >= len(items) {
					return nil, nil, fmt.Errorf("extra %s references a missing item", in.Kind)
				}
				extra.ItemID = items[*in.ItemIndex].ID
			}
			extras = append(extras, extra)
		}

		owed, total, err := settlement.ComputeItemizedShares(items, extras)
		if err != nil {
			return nil, nil, err
		}
		engineExp.Amount = total
		engineExp.Shares = owed
		plan.expense.AmountMinor = int64(total)

		if verrs := settlement.ValidateExpense(engineExp, roster); len(verrs) > 0 {
			return nil, verrs, nil
		}

		plan.shares = shareRows(plan.expense, owed, nil)
		plan.items, plan.extras = itemRows(plan.expense.ID, items, extras)

	default:
		return nil, nil, fmt.Errorf("unknown split type %q", req.Split)
	}

	return plan, nil, nil
}

func shareRows(expense models.Expense, owed map[uuid.UUID]settlement.Amount, weights map[uuid.UUID]int64) []models.ExpenseShare {
	rows := make([]models.ExpenseShare, 0, len(owed))
	for id, amount := range owed {
		w := int64(1)
		if weights != nil {
			w = weights[id]
		}
		paid := int64(0)
		if id == expense.PaidBy {
			paid = expense.AmountMinor
		}
		rows = append(rows, models.ExpenseShare{
			ExpenseID: expense.ID,
			UserID:    id,
			Weight:    w,
			OwedMinor: int64(amount),
			PaidMinor: paid,
		})
	}
	return rows
}

func itemRows(expenseID uuid.UUID, items []settlement.Item, extras []settlement.Extra) ([]models.ExpenseItem, []models.ExpenseExtra) {
	itemModels := make([]models.ExpenseItem, 0, len(items))
	for _, item := range items {
		ids := make([]string, 0, len(item.Participants))
		for _, id := range item.Participants {
			ids = append(ids, id.String())
		}
		itemModels = append(itemModels, models.ExpenseItem{
			ID:          item.ID,
			ExpenseID:   expenseID,
			Description: item.Description,
			AmountMinor: int64(item.Amount),
			Assignees:   strings.Join(ids, ","),
		})
	}

	extraModels := make([]models.ExpenseExtra, 0, len(extras))
	for _, extra := range extras {
		model := models.ExpenseExtra{
			ExpenseID:   expenseID,
			Kind:        string(extra.Kind),
			Base:        string(extra.Base),
			AmountMinor: int64(extra.Amount),
		}
		if extra.Base == settlement.BaseItem {
			itemID := extra.ItemID
			model.ItemID = &itemID
		}
		extraModels = append(extraModels, model)
	}
	return itemModels, extraModels
}

func persistExpense(plan *expensePlan) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&plan.expense).Error; err != nil {
			return err
		}
		for i := range plan.shares {
			if err := tx.Create(&plan.shares[i]).Error; err != nil {
				return err
			}
		}
		for i := range plan.items {
			if err := tx.Create(&plan.items[i]).Error; err != nil {
				return err
			}
		}
		for i := range plan.extras {
			if err := tx.Create(&plan.extras[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// replaceAllocation swaps an expense's stored allocation for a freshly
// computed one inside a single transaction.
func replaceAllocation(expense *models.Expense, plan *expensePlan) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("expense_id = ?", expense.ID).Delete(&models.ExpenseExtra{}).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"amount_minor": plan.expense.AmountMinor,
			"split":        plan.expense.Split,
			"paid_by":      plan.expense.PaidBy,
		}
		if err := tx.Model(expense).Updates(updates).Error; err != nil {
			return err
		}

		for i := range plan.shares {
			if err := tx.Create(&plan.shares[i]).Error; err != nil {
				return err
			}
		}
		for i := range plan.items {
			if err := tx.Create(&plan.items[i]).Error; err != nil {
				return err
			}
		}
		for i := range plan.extras {
			if err := tx.Create(&plan.extras[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// mergeUpdateRequest folds an update into the stored expense so the
// reallocation path sees one complete request.
func mergeUpdateRequest(expense *models.Expense, req models.UpdateExpenseRequest) (models.CreateExpenseRequest, error) {
	out := models.CreateExpenseRequest{
		Description:  expense.Description,
		PaidBy:       expense.PaidBy.String(),
		Currency:     expense.Currency,
		Category:     expense.Category,
		Split:        expense.Split,
		Notes:        expense.Notes,
		ExpenseDate:  expense.ExpenseDate.Format("2006-01-02"),
		Participants: req.Participants,
		Items:        req.Items,
		Extras:       req.Extras,
	}
	if req.Split != "" {
		out.Split = req.Split
	}
	if req.Amount != "" {
		out.Amount = req.Amount
	} else if out.Split != string(settlement.SplitItemized) {
		out.Amount = settlement.FormatAmount(settlement.Amount(expense.AmountMinor), expense.Currency)
	}

	// Without new participant inputs, reuse the stored ones.
	if len(out.Participants) == 0 && out.Split != string(settlement.SplitItemized) {
		var shares []models.ExpenseShare
		database.DB.Where("expense_id = ?", expense.ID).Find(&shares)
		for _, s := range shares {
			out.Participants = append(out.Participants, models.ParticipantInput{
				UserID: s.UserID.String(),
				Weight: s.Weight,
			})
		}
	}
	if out.Split == string(settlement.SplitItemized) && len(out.Items) == 0 {
		return out, fmt.Errorf("itemized expenses require items")
	}
	return out, nil
}

func memberNames(trip *models.Trip) map[uuid.UUID]string {
	names := make(map[uuid.UUID]string, len(trip.Members))
	for _, m := range trip.Members {
		names[m.UserID] = m.User.Name
	}
	return names
}

// Build expense response with payer name and share details
func buildExpenseResponse(expenseID uuid.UUID) models.ExpenseResponse {
	var expense models.Expense
	if err := database.DB.Preload("Shares.User").Preload("Items").Preload("Extras").
		First(&expense, expenseID).Error; err != nil {
		return models.ExpenseResponse{}
	}

	var payer models.User
	database.DB.First(&payer, expense.PaidBy)

	var shareResponses []models.ShareResponse
	for _, s := range expense.Shares {
		shareResponses = append(shareResponses, models.ShareResponse{
			UserID:   s.UserID,
			UserName: s.User.Name,
			Weight:   s.Weight,
			Owed:     settlement.FormatAmount(settlement.Amount(s.OwedMinor), expense.Currency),
			Paid:     settlement.FormatAmount(settlement.Amount(s.PaidMinor), expense.Currency),
		})
	}

	return models.ExpenseResponse{
		ID:          expense.ID,
		TripID:      expense.TripID,
		PaidBy:      expense.PaidBy,
		PayerName:   payer.Name,
		Description: expense.Description,
		Amount:      settlement.FormatAmount(settlement.Amount(expense.AmountMinor), expense.Currency),
		Currency:    expense.Currency,
		Category:    expense.Category,
		Split:       expense.Split,
		Notes:       expense.Notes,
		ExpenseDate: expense.ExpenseDate,
		Shares:      shareResponses,
		CreatedAt:   expense.CreatedAt,
	}
}

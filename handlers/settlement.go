package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tripsplit-backend/database"
	"tripsplit-backend/models"
	"tripsplit-backend/services"
	"tripsplit-backend/settlement"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// settlementCurrency resolves the currency a settlement call applies to:
// the query parameter when given, the trip default otherwise.
func settlementCurrency(c *gin.Context, trip *models.Trip) (string, bool) {
	currency := strings.ToUpper(c.Query("currency"))
	if currency == "" {
		currency = trip.DefaultCurrency()
	}
	if !trip.AllowsCurrency(currency) {
		utils.BadRequest(c, fmt.Sprintf("Trip does not use currency %s", currency))
		return "", false
	}
	return currency, true
}

// GET /api/trips/:id/settlement?currency=EUR
func GetSettlement(c *gin.Context) {
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

	var trip models.Trip
	if err := database.DB.First(&trip, tripID).Error; err != nil {
		utils.NotFound(c, "Trip not found")
		return
	}

	currency, ok := settlementCurrency(c, &trip)
	if !ok {
		return
	}

	summary, err := services.GetSettlementService().ComputeForTrip(c.Request.Context(), tripID, currency)
	if err != nil {
		if errors.Is(err, services.ErrTripNotFound) {
			utils.NotFound(c, "Trip not found")
			return
		}
		utils.InternalError(c, "Failed to compute settlement")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

// GET /api/trips/:id/settlement/explain?from=&to=&currency=
func ExplainTransfer(c *gin.Context) {
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

	key, ok := transferKeyFromQuery(c)
	if !ok {
		return
	}

	breakdown, err := services.GetSettlementService().Explain(tripID, key)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTripNotFound):
			utils.NotFound(c, "Trip not found")
		case errors.Is(err, settlement.ErrTransferNotFound):
			utils.NotFound(c, "Transfer not found")
		default:
			utils.InternalError(c, "Failed to explain transfer")
		}
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", breakdown)
}

// POST /api/trips/:id/settle
func SettleTransfer(c *gin.Context) {
	changeTransferStatus(c, settlement.StatusSettled)
}

// POST /api/trips/:id/unsettle
func UnsettleTransfer(c *gin.Context) {
	changeTransferStatus(c, settlement.StatusActive)
}

func changeTransferStatus(c *gin.Context, status settlement.TransferStatus) {
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

	var req models.SettleTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	key, ok := transferKeyFromRequest(c, req)
	if !ok {
		return
	}

	svc := services.GetSettlementService()
	var record *models.SettlementRecord
	if status == settlement.StatusSettled {
		record, err = svc.MarkSettled(c.Request.Context(), tripID, key)
	} else {
		record, err = svc.MarkUnsettled(c.Request.Context(), tripID, key)
	}
	if err != nil {
		if errors.Is(err, settlement.ErrTransferNotFound) {
			utils.NotFound(c, "Transfer not found")
			return
		}
		utils.InternalError(c, "Failed to update transfer")
		return
	}

	var payer, payee models.User
	database.DB.First(&payer, key.From)
	database.DB.First(&payee, key.To)

	activityType := "transfer_settled"
	verb := "settled"
	if status == settlement.StatusActive {
		activityType = "transfer_reopened"
		verb = "reopened"
	}
	database.DB.Create(&models.Activity{
		TripID:      tripID,
		UserID:      userID,
		Type:        activityType,
		ReferenceID: record.ID,
		Description: fmt.Sprintf("%s %s a payment of %s %s from %s to %s",
			actorName(userID), verb, key.Currency,
			settlement.FormatAmount(settlement.Amount(record.AmountMinor), key.Currency),
			payer.Name, payee.Name),
	})

	if status == settlement.StatusSettled {
		var trip models.Trip
		database.DB.First(&trip, tripID)
		go services.GetNotificationService().NotifyTransferSettled(*record, payer, payee, trip)
	}

	utils.SuccessResponse(c, http.StatusOK, "Transfer updated", record)
}

// GET /api/trips/:id/settlement/records — raw persisted records across
// all currencies, confirmation state included.
func GetSettlementRecords(c *gin.Context) {
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

	query := database.DB.Where("trip_id = ?", tripID)
	if currency := strings.ToUpper(c.Query("currency")); currency != "" {
		query = query.Where("currency = ?", currency)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var records []models.SettlementRecord
	query.Order("created_at ASC").Find(&records)

	utils.SuccessResponse(c, http.StatusOK, "", records)
}

func transferKeyFromQuery(c *gin.Context) (settlement.TransferKey, bool) {
	from, err := uuid.Parse(c.Query("from"))
	if err != nil {
		utils.BadRequest(c, "Invalid from user ID")
		return settlement.TransferKey{}, false
	}
	to, err := uuid.Parse(c.Query("to"))
	if err != nil {
		utils.BadRequest(c, "Invalid to user ID")
		return settlement.TransferKey{}, false
	}
	currency := strings.ToUpper(c.Query("currency"))
	if currency == "" {
		utils.BadRequest(c, "currency is required")
		return settlement.TransferKey{}, false
	}
	return settlement.TransferKey{From: from, To: to, Currency: currency}, true
}

func transferKeyFromRequest(c *gin.Context, req models.SettleTransferRequest) (settlement.TransferKey, bool) {
	from, err := uuid.Parse(req.From)
	if err != nil {
		utils.BadRequest(c, "Invalid from user ID")
		return settlement.TransferKey{}, false
	}
	to, err := uuid.Parse(req.To)
	if err != nil {
		utils.BadRequest(c, "Invalid to user ID")
		return settlement.TransferKey{}, false
	}
	return settlement.TransferKey{From: from, To: to, Currency: strings.ToUpper(req.Currency)}, true
}

func actorName(userID uuid.UUID) string {
	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		return "Someone"
	}
	return user.Name
}

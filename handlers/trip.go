package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"tripsplit-backend/database"
	"tripsplit-backend/models"
	"tripsplit-backend/services"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/trips
func CreateTrip(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	currencies := normalizeCurrencies(req.Currencies)

	trip := models.Trip{
		Name:       req.Name,
		Currencies: currencies,
		CreatedBy:  userID,
	}

	if err := database.DB.Create(&trip).Error; err != nil {
		utils.InternalError(c, "Failed to create trip")
		return
	}

	// Add creator as admin member
	member := models.TripMember{
		TripID: trip.ID,
		UserID: userID,
		Role:   "admin",
	}
	database.DB.Create(&member)

	// Add other members if provided
	for _, memberInput := range req.Members {
		memberUUID, err := uuid.Parse(memberInput)
		if err != nil {
			// Might be an email, try to find user
			var user models.User
			if dbErr := database.DB.Where("email = ?", memberInput).First(&user).Error; dbErr == nil {
				memberUUID = user.ID
			} else {
				go services.InviteToTrip(trip.ID, userID, memberInput)
				continue
			}
		}

		if memberUUID != userID {
			database.DB.Create(&models.TripMember{
				TripID: trip.ID,
				UserID: memberUUID,
				Role:   "member",
			})
		}
	}

	var creator models.User
	database.DB.First(&creator, userID)
	database.DB.Create(&models.Activity{
		TripID:      trip.ID,
		UserID:      userID,
		Type:        "trip_created",
		ReferenceID: trip.ID,
		Description: fmt.Sprintf("%s created trip \"%s\"", creator.Name, trip.Name),
	})

	response := buildTripResponse(trip.ID)
	utils.SuccessResponse(c, http.StatusCreated, "Trip created", response)
}

// GET /api/trips
func GetTrips(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var memberships []models.TripMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	var tripIDs []uuid.UUID
	for _, m := range memberships {
		tripIDs = append(tripIDs, m.TripID)
	}

	var trips []models.Trip
	if len(tripIDs) > 0 {
		database.DB.Where("id IN ?", tripIDs).Order("created_at DESC").Find(&trips)
	}

	var responses []models.TripResponse
	for _, t := range trips {
		responses = append(responses, buildTripResponse(t.ID))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/trips/:id
func GetTrip(c *gin.Context) {
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

	response := buildTripResponse(tripID)
	if response.ID == uuid.Nil {
		utils.NotFound(c, "Trip not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// PUT /api/trips/:id
func UpdateTrip(c *gin.Context) {
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

	var req models.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.ImageURL != "" {
		updates["image_url"] = req.ImageURL
	}
	if len(req.Currencies) > 0 {
		updates["currencies"] = normalizeCurrencies(req.Currencies)
	}

	var trip models.Trip
	if err := database.DB.First(&trip, tripID).Error; err != nil {
		utils.NotFound(c, "Trip not found")
		return
	}
	database.DB.Model(&trip).Updates(updates)

	utils.SuccessResponse(c, http.StatusOK, "Trip updated", buildTripResponse(tripID))
}

// POST /api/trips/:id/members
func AddMember(c *gin.Context) {
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

	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var user models.User
	if req.UserID != "" {
		uid, err := uuid.Parse(req.UserID)
		if err != nil {
			utils.BadRequest(c, "Invalid user ID")
			return
		}
		if err := database.DB.First(&user, uid).Error; err != nil {
			utils.NotFound(c, "User not found")
			return
		}
	} else if req.Email != "" {
		if err := database.DB.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
			// Not registered yet: send an invitation instead
			go services.InviteToTrip(tripID, userID, strings.ToLower(req.Email))
			utils.SuccessResponse(c, http.StatusOK, "Invitation sent", nil)
			return
		}
	} else {
		utils.BadRequest(c, "user_id or email is required")
		return
	}

	var existing models.TripMember
	if err := database.DB.Where("trip_id = ? AND user_id = ?", tripID, user.ID).First(&existing).Error; err == nil {
		utils.BadRequest(c, "User is already a member")
		return
	}

	database.DB.Create(&models.TripMember{
		TripID: tripID,
		UserID: user.ID,
		Role:   "member",
	})

	var adder models.User
	database.DB.First(&adder, userID)
	var trip models.Trip
	database.DB.First(&trip, tripID)

	database.DB.Create(&models.Activity{
		TripID:      tripID,
		UserID:      userID,
		Type:        "member_joined",
		Description: fmt.Sprintf("%s added %s to %s", adder.Name, user.Name, trip.Name),
	})

	go services.GetNotificationService().NotifyMemberAdded(trip, adder, user)

	utils.SuccessResponse(c, http.StatusOK, "Member added", buildTripResponse(tripID))
}

// DELETE /api/trips/:id/members/:uid
func RemoveMember(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	tripID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid trip ID")
		return
	}
	targetID, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		utils.BadRequest(c, "Invalid user ID")
		return
	}

	if !isMember(tripID, userID) {
		utils.Unauthorized(c, "You are not a member of this trip")
		return
	}

	// Members may remove themselves; removing others needs admin
	if targetID != userID && !isAdmin(tripID, userID) {
		utils.Unauthorized(c, "Only admins can remove other members")
		return
	}

	// A member with unsettled debts cannot leave
	var count int64
	database.DB.Model(&models.SettlementRecord{}).
		Where("trip_id = ? AND status = ? AND (from_id = ? OR to_id = ?)", tripID, "active", targetID, targetID).
		Count(&count)
	if count > 0 {
		utils.BadRequest(c, "Member has unsettled balances in this trip")
		return
	}

	database.DB.Where("trip_id = ? AND user_id = ?", tripID, targetID).Delete(&models.TripMember{})

	var target models.User
	database.DB.First(&target, targetID)
	database.DB.Create(&models.Activity{
		TripID:      tripID,
		UserID:      userID,
		Type:        "member_left",
		Description: fmt.Sprintf("%s left the trip", target.Name),
	})

	utils.SuccessResponse(c, http.StatusOK, "Member removed", nil)
}

// POST /api/trips/:id/invite
func InviteToTripHandler(c *gin.Context) {
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

	var req models.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	go services.InviteToTrip(tripID, userID, strings.ToLower(req.Email))

	utils.SuccessResponse(c, http.StatusOK, "Invitation sent", nil)
}

// Check if user is a member of the trip
func isMember(tripID, userID uuid.UUID) bool {
	var member models.TripMember
	return database.DB.Where("trip_id = ? AND user_id = ?", tripID, userID).First(&member).Error == nil
}

// Check if user is an admin of the trip
func isAdmin(tripID, userID uuid.UUID) bool {
	var member models.TripMember
	return database.DB.Where("trip_id = ? AND user_id = ? AND role = ?", tripID, userID, "admin").First(&member).Error == nil
}

func normalizeCurrencies(codes []string) string {
	if len(codes) == 0 {
		return "USD"
	}
	var out []string
	seen := make(map[string]bool)
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" && !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	if len(out) == 0 {
		return "USD"
	}
	return strings.Join(out, ",")
}

// Build trip response with member details
func buildTripResponse(tripID uuid.UUID) models.TripResponse {
	var trip models.Trip
	if err := database.DB.Preload("Members.User").First(&trip, tripID).Error; err != nil {
		return models.TripResponse{}
	}

	var memberResponses []models.TripMemberResponse
	for _, m := range trip.Members {
		memberResponses = append(memberResponses, models.TripMemberResponse{
			UserID:    m.UserID,
			Name:      m.User.Name,
			Email:     m.User.Email,
			AvatarURL: m.User.AvatarURL,
			Role:      m.Role,
			JoinedAt:  m.JoinedAt,
		})
	}

	return models.TripResponse{
		ID:         trip.ID,
		Name:       trip.Name,
		ImageURL:   trip.ImageURL,
		Currencies: trip.CurrencyList(),
		CreatedBy:  trip.CreatedBy,
		Members:    memberResponses,
		CreatedAt:  trip.CreatedAt,
	}
}

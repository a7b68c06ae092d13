package handlers

import (
	"net/http"

	"tripsplit-backend/database"
	"tripsplit-backend/models"
	"tripsplit-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/activity — global activity feed for current user
func GetActivity(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	var memberships []models.TripMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	var tripIDs []uuid.UUID
	for _, m := range memberships {
		tripIDs = append(tripIDs, m.TripID)
	}

	var activities []models.Activity
	if len(tripIDs) > 0 {
		database.DB.Where("trip_id IN ?", tripIDs).
			Preload("User").
			Order("created_at DESC").
			Offset(pagination.Offset()).
			Limit(pagination.Limit).
			Find(&activities)

		// Attach trip names
		tripNames := make(map[uuid.UUID]string)
		var trips []models.Trip
		database.DB.Where("id IN ?", tripIDs).Find(&trips)
		for _, t := range trips {
			tripNames[t.ID] = t.Name
		}
		for i := range activities {
			activities[i].TripName = tripNames[activities[i].TripID]
		}
	}

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}

// GET /api/trips/:id/activity — activity feed for a specific trip
func GetTripActivity(c *gin.Context) {
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

	var activities []models.Activity
	database.DB.Where("trip_id = ?", tripID).
		Preload("User").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&activities)

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}

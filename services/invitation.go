package services

import (
	"tripsplit-backend/database"
	"tripsplit-backend/logger"
	"tripsplit-backend/models"

	"github.com/google/uuid"
)

// InviteToTrip creates an invitation and emails the invitee. If the email
// already belongs to a registered user they are added to the trip
// directly.
func InviteToTrip(tripID uuid.UUID, invitedBy uuid.UUID, email string) {
	log := logger.Get()

	var existing models.Invitation
	if err := database.DB.Where("trip_id = ? AND status = ? AND email = ?", tripID, "pending", email).
		First(&existing).Error; err == nil {
		log.Infow("invitation already pending", "email", email, "trip_id", tripID)
		return
	}

	var existingUser models.User
	if err := database.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
		var existingMember models.TripMember
		if err := database.DB.Where("trip_id = ? AND user_id = ?", tripID, existingUser.ID).First(&existingMember).Error; err != nil {
			database.DB.Create(&models.TripMember{
				TripID: tripID,
				UserID: existingUser.ID,
				Role:   "member",
			})
			log.Infow("added existing user to trip", "email", email, "trip_id", tripID)
		}
		return
	}

	invitation := models.Invitation{
		TripID:    tripID,
		InvitedBy: invitedBy,
		Email:     email,
		Status:    "pending",
	}
	if err := database.DB.Create(&invitation).Error; err != nil {
		log.Errorw("failed to create invitation", "error", err)
		return
	}

	var inviter models.User
	database.DB.First(&inviter, invitedBy)
	var trip models.Trip
	database.DB.First(&trip, tripID)

	GetNotificationService().NotifyInvitation(email, inviter.Name, trip.Name)
	log.Infow("invitation sent", "email", email, "trip_id", tripID)
}

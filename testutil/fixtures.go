package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"tripsplit-backend/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Name:         name,
		Email:        fmt.Sprintf("user%d@test.com", nextID()),
		PasswordHash: string(hash),
		Currency:     "USD",
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestTrip creates a trip with the given members; the first member
// is the creator and admin. Currencies default to USD.
func CreateTestTrip(t *testing.T, db *gorm.DB, currencies string, members ...*models.User) *models.Trip {
	t.Helper()

	if len(members) == 0 {
		t.Fatal("a trip needs at least one member")
	}
	if currencies == "" {
		currencies = "USD"
	}

	trip := &models.Trip{
		Name:       fmt.Sprintf("Test Trip %d", nextID()),
		Currencies: currencies,
		CreatedBy:  members[0].ID,
	}
	if err := db.Create(trip).Error; err != nil {
		t.Fatalf("failed to create test trip: %v", err)
	}

	for i, m := range members {
		role := "member"
		if i == 0 {
			role = "admin"
		}
		if err := db.Create(&models.TripMember{TripID: trip.ID, UserID: m.ID, Role: role}).Error; err != nil {
			t.Fatalf("failed to add test trip member: %v", err)
		}
	}
	return trip
}

// CreateEqualExpense creates an equal-split expense with computed share
// rows, amount in minor units.
func CreateEqualExpense(t *testing.T, db *gorm.DB, trip *models.Trip, payer *models.User, amountMinor int64, participants ...*models.User) *models.Expense {
	t.Helper()

	expense := &models.Expense{
		TripID:      trip.ID,
		PaidBy:      payer.ID,
		Description: fmt.Sprintf("Test Expense %d", nextID()),
		AmountMinor: amountMinor,
		Currency:    trip.DefaultCurrency(),
		Split:       "equal",
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}

	n := int64(len(participants))
	if n == 0 {
		t.Fatal("an expense needs at least one participant")
	}
	base := amountMinor / n
	leftover := amountMinor - base*n
	for i, p := range participants {
		owed := base
		if int64(i) < leftover {
			owed++
		}
		paid := int64(0)
		if p.ID == payer.ID {
			paid = amountMinor
		}
		share := &models.ExpenseShare{
			ExpenseID: expense.ID,
			UserID:    p.ID,
			Weight:    1,
			OwedMinor: owed,
			PaidMinor: paid,
		}
		if err := db.Create(share).Error; err != nil {
			t.Fatalf("failed to create test expense share: %v", err)
		}
	}
	return expense
}

// SettlementKeyCount counts persisted settlement records for a trip.
func SettlementKeyCount(t *testing.T, db *gorm.DB, tripID uuid.UUID) int64 {
	t.Helper()

	var count int64
	if err := db.Model(&models.SettlementRecord{}).Where("trip_id = ?", tripID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count settlement records: %v", err)
	}
	return count
}

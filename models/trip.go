package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Trip struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string       `gorm:"not null;size:100" json:"name"`
	ImageURL  string       `json:"image_url,omitempty"`
	// Currencies is a comma-separated list of allowed ISO codes; the
	// first one is the default for new expenses. Each currency settles
	// independently.
	Currencies string       `gorm:"not null;default:USD;size:60" json:"currencies"`
	CreatedBy  uuid.UUID    `gorm:"type:uuid" json:"created_by"`
	Creator    User         `gorm:"foreignKey:CreatedBy" json:"creator,omitempty"`
	Members    []TripMember `gorm:"foreignKey:TripID" json:"members,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (t *Trip) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// CurrencyList splits the stored CSV into codes.
func (t *Trip) CurrencyList() []string {
	var out []string
	for _, c := range strings.Split(t.Currencies, ",") {
		if c = strings.TrimSpace(strings.ToUpper(c)); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// DefaultCurrency is the first allowed currency.
func (t *Trip) DefaultCurrency() string {
	if list := t.CurrencyList(); len(list) > 0 {
		return list[0]
	}
	return "USD"
}

// AllowsCurrency reports whether the trip settles in the given code.
func (t *Trip) AllowsCurrency(code string) bool {
	for _, c := range t.CurrencyList() {
		if c == code {
			return true
		}
	}
	return false
}

type TripMember struct {
	TripID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"trip_id"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Role     string    `gorm:"default:member;size:20" json:"role"` // admin, member
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Request structs
type CreateTripRequest struct {
	Name       string   `json:"name" binding:"required"`
	Currencies []string `json:"currencies"`
	Members    []string `json:"members"` // user IDs or emails
}

type UpdateTripRequest struct {
	Name       string   `json:"name"`
	ImageURL   string   `json:"image_url"`
	Currencies []string `json:"currencies"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Response structs
type TripResponse struct {
	ID         uuid.UUID            `json:"id"`
	Name       string               `json:"name"`
	ImageURL   string               `json:"image_url,omitempty"`
	Currencies []string             `json:"currencies"`
	CreatedBy  uuid.UUID            `json:"created_by"`
	Members    []TripMemberResponse `json:"members"`
	CreatedAt  time.Time            `json:"created_at"`
}

type TripMemberResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joined_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleAdmin      = "admin"
	RoleAstrologer = "astrologer"
	RoleCustomer   = "customer"

	// PlanTypeFree is the plan_type mirror of a user without an active entitlement.
	PlanTypeFree = "free"
)

// User is the account record shared with the accounts service. Only the
// entitlement flags are written by billing; they mirror the user's single
// active Entitlement.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Username  string         `gorm:"size:150" json:"username"`
	Role      string         `gorm:"size:20;default:'customer'" json:"role"`
	IsPremium bool           `gorm:"not null;default:false" json:"is_premium"`
	PlanType  string         `gorm:"size:50;not null;default:'free'" json:"plan_type"`
	Language  string         `gorm:"size:2;default:'en'" json:"language"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Entitlement is the single materialized access record per user. It is only
// written as a side effect of a payment completing, a refund, a cancellation
// or the expiry sweep.
type Entitlement struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	PlanID    *uuid.UUID `gorm:"type:uuid;index" json:"plan_id"`
	PaymentID *uuid.UUID `gorm:"type:uuid" json:"payment_id"`
	IsActive  bool       `gorm:"not null;index" json:"is_active"`
	StartDate time.Time  `gorm:"not null" json:"start_date"`
	EndDate   *time.Time `gorm:"index" json:"end_date"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	User      User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Plan      *Plan      `gorm:"foreignKey:PlanID;constraint:OnDelete:SET NULL" json:"plan,omitempty"`
}

func (e *Entitlement) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ValidAt reports whether the entitlement grants access at t.
func (e *Entitlement) ValidAt(t time.Time) bool {
	return e.IsActive && (e.EndDate == nil || e.EndDate.After(t))
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Plan categories mirrored into users.plan_type.
const (
	CategoryBasic      = "basic"
	CategoryPremium    = "premium"
	CategoryEnterprise = "enterprise"
	CategoryMonthly    = "monthly"
	CategoryYearly     = "yearly"
	CategoryOneTime    = "one_time"
)

// Billing periods. The period decides how long an entitlement lasts.
const (
	PeriodMonthly  = "monthly"
	PeriodYearly   = "yearly"
	PeriodOneTime  = "one_time"
	PeriodLifetime = "lifetime"
)

var periodDurations = map[string]time.Duration{
	PeriodMonthly:  30 * 24 * time.Hour,
	PeriodYearly:   365 * 24 * time.Hour,
	PeriodOneTime:  0,
	PeriodLifetime: 0,
}

type Plan struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                      `gorm:"size:100;not null" json:"name"`
	Category      string                      `gorm:"size:20;not null;index" json:"category"`
	Description   string                      `gorm:"type:text" json:"description"`
	Price         decimal.Decimal             `gorm:"type:numeric(10,2);not null" json:"price"`
	BillingPeriod string                      `gorm:"size:20;not null" json:"billing_period"`
	Features      datatypes.JSONSlice[string] `json:"features"`
	IsActive      bool                        `gorm:"not null;index" json:"is_active"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Duration returns the entitlement length for the plan's billing period.
// Zero means the entitlement never ends.
func (p *Plan) Duration() time.Duration {
	return periodDurations[p.BillingPeriod]
}

// EndsAt computes the entitlement end for a purchase completed at from.
// A nil result is a lifetime entitlement.
func (p *Plan) EndsAt(from time.Time) *time.Time {
	d := p.Duration()
	if d == 0 {
		return nil
	}
	end := from.Add(d)
	return &end
}

func ValidBillingPeriod(period string) bool {
	_, ok := periodDurations[period]
	return ok
}

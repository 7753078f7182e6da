package dto

import "github.com/shopspring/decimal"

type CreatePlanRequest struct {
	Name          string          `json:"name" validate:"required,max=100"`
	Category      string          `json:"category" validate:"required,oneof=basic premium enterprise monthly yearly one_time"`
	Description   string          `json:"description" validate:"max=2000"`
	Price         decimal.Decimal `json:"price"`
	BillingPeriod string          `json:"billing_period" validate:"required,oneof=monthly yearly one_time lifetime"`
	Features      []string        `json:"features" validate:"dive,required,max=64"`
	IsActive      *bool           `json:"is_active"`
}

// UpdatePlanRequest is a partial update; nil fields are left untouched.
type UpdatePlanRequest struct {
	Name          *string          `json:"name" validate:"omitempty,max=100"`
	Category      *string          `json:"category" validate:"omitempty,oneof=basic premium enterprise monthly yearly one_time"`
	Description   *string          `json:"description" validate:"omitempty,max=2000"`
	Price         *decimal.Decimal `json:"price"`
	BillingPeriod *string          `json:"billing_period" validate:"omitempty,oneof=monthly yearly one_time lifetime"`
	Features      *[]string        `json:"features"`
	IsActive      *bool            `json:"is_active"`
}

package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
)

type EntitlementResponse struct {
	IsPremium     bool         `json:"is_premium"`
	PlanType      string       `json:"plan_type"`
	IsActive      bool         `json:"is_active"`
	Plan          *models.Plan `json:"plan,omitempty"`
	StartDate     *time.Time   `json:"start_date,omitempty"`
	EndDate       *time.Time   `json:"end_date,omitempty"`
	DaysRemaining *int         `json:"days_remaining,omitempty"`
}

type SweepResponse struct {
	Job      string `json:"job"`
	Affected int    `json:"affected"`
}

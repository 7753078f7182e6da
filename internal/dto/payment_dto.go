package dto

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/google/uuid"
)

type CreatePaymentRequest struct {
	PlanID        uuid.UUID `json:"plan_id" validate:"required"`
	PaymentMethod string    `json:"payment_method" validate:"max=50"`
}

// CreatePaymentResponse carries what the checkout widget needs.
type CreatePaymentResponse struct {
	Payment  *models.Payment `json:"payment"`
	KeyID    string          `json:"key"`
	OrderID  string          `json:"order_id"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	// Resumed is set when an earlier pending checkout for the plan is
	// handed back instead of opening a new order.
	Resumed bool `json:"resumed"`
}

type ConfirmPaymentRequest struct {
	TransactionID string `json:"payment_id" validate:"required,max=100"`
	Signature     string `json:"signature" validate:"required"`
}

// PaymentActionRequest drives the admin dashboard actions.
type PaymentActionRequest struct {
	Action string `json:"action" validate:"required,oneof=approve refund mark_failed"`
	Reason string `json:"reason" validate:"max=255"`
}

type PaymentFilter struct {
	Status  string
	Gateway string
	Since   *time.Time
	Search  string
	Limit   int
	Offset  int
}

type PaymentListResponse struct {
	Payments []models.Payment `json:"payments"`
	Total    int64            `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

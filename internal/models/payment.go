package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentCompleted  = "completed"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

// Transition is a single edge in the payment status graph.
type Transition struct {
	From string
	To   string
}

var paymentTransitions = map[Transition]bool{
	{PaymentPending, PaymentCompleted}:  true,
	{PaymentPending, PaymentFailed}:     true,
	{PaymentProcessing, PaymentFailed}:  true,
	{PaymentCompleted, PaymentRefunded}: true,
}

// CanTransition reports whether a payment may move from one status to another.
func CanTransition(from, to string) bool {
	return paymentTransitions[Transition{from, to}]
}

// Payment is one attempted purchase. Rows are never deleted; they are the
// audit trail for every entitlement change.
type Payment struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID           *uuid.UUID      `gorm:"type:uuid;index" json:"plan_id"`
	Amount           decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Currency         string          `gorm:"size:3;not null" json:"currency"`
	PaymentMethod    string          `gorm:"size:50" json:"payment_method"`
	Gateway          string          `gorm:"size:50;not null;index" json:"gateway"`
	GatewayOrderID   string          `gorm:"size:100;index" json:"gateway_order_id"`
	GatewayPaymentID *string         `gorm:"size:100;index" json:"gateway_payment_id"`
	Status           string          `gorm:"size:20;not null;index" json:"status"`
	StatusReason     string          `gorm:"size:255" json:"status_reason,omitempty"`
	EndDate          *time.Time      `json:"end_date"`
	CompletedAt      *time.Time      `json:"completed_at"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	User             User            `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Plan             *Plan           `gorm:"foreignKey:PlanID;constraint:OnDelete:SET NULL" json:"plan,omitempty"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

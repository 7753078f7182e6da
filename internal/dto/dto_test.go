package dto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestValidateCreatePlan(t *testing.T) {
	ok := CreatePlanRequest{Name: "Premium", Category: "premium", BillingPeriod: "monthly", Features: []string{"daily_horoscope"}}
	assert.NoError(t, Validate(&ok))

	bad := CreatePlanRequest{Category: "gold", BillingPeriod: "weekly"}
	err := Validate(&bad)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "category must be one of")
	assert.Contains(t, err.Error(), "billing_period must be one of")
}

func TestValidateUpdatePlanSkipsNil(t *testing.T) {
	assert.NoError(t, Validate(&UpdatePlanRequest{}))

	period := "fortnightly"
	assert.Error(t, Validate(&UpdatePlanRequest{BillingPeriod: &period}))
}

func TestValidatePaymentRequests(t *testing.T) {
	assert.Error(t, Validate(&CreatePaymentRequest{}))
	assert.NoError(t, Validate(&CreatePaymentRequest{PlanID: uuid.New(), PaymentMethod: "upi"}))

	assert.Error(t, Validate(&ConfirmPaymentRequest{TransactionID: "pay_1"}))
	assert.Error(t, Validate(&PaymentActionRequest{Action: "delete"}))
	assert.NoError(t, Validate(&PaymentActionRequest{Action: "refund", Reason: "duplicate charge"}))
}

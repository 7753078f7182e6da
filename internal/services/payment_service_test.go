package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func TestMonthlyPurchaseGrantsThirtyDays(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly Stars", models.CategoryMonthly, "499.00", models.PeriodMonthly)

	resp := env.checkout(t, user, plan)
	assert.Equal(t, models.PaymentPending, resp.Payment.Status)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, int64(49900), resp.Amount)
	assert.Equal(t, "fake_key", resp.KeyID)
	assert.NotEmpty(t, resp.OrderID)
	assert.True(t, resp.Payment.Amount.Equal(plan.Price))

	stored := env.reloadPayment(t, resp.Payment.ID)
	assert.Equal(t, resp.OrderID, stored.GatewayOrderID)
	assert.False(t, env.reloadUser(t, user.ID).IsPremium)

	now := env.clock.Now()
	p := env.confirm(t, user, resp, "pay_001")
	assert.Equal(t, models.PaymentCompleted, p.Status)
	require.NotNil(t, p.EndDate)
	assert.True(t, p.EndDate.Equal(now.Add(30*24*time.Hour)))

	ent := env.entitlement(t, user.ID)
	assert.True(t, ent.IsActive)
	require.NotNil(t, ent.PlanID)
	assert.Equal(t, plan.ID, *ent.PlanID)
	require.NotNil(t, ent.EndDate)
	assert.WithinDuration(t, now.Add(30*24*time.Hour), *ent.EndDate, time.Second)

	u := env.reloadUser(t, user.ID)
	assert.True(t, u.IsPremium)
	assert.Equal(t, models.CategoryMonthly, u.PlanType)
	env.requireFlagsMatch(t, user.ID)

	current, err := env.entitlements.Current(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, current.IsActive)
	require.NotNil(t, current.DaysRemaining)
	assert.Equal(t, 30, *current.DaysRemaining)
}

func TestConfirmIsIdempotentForSameTransaction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	resp := env.checkout(t, user, plan)
	first := env.confirm(t, user, resp, "pay_same")
	endBefore := env.entitlement(t, user.ID).EndDate

	env.clock.Advance(time.Hour)
	second := env.confirm(t, user, resp, "pay_same")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.PaymentCompleted, second.Status)
	assert.WithinDuration(t, *endBefore, *env.entitlement(t, user.ID).EndDate, time.Second)

	// The same ref with a signature the gateway never issued is not a replay.
	_, err := env.payments.ConfirmPayment(ctx, user.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: "pay_same",
		Signature:     "deadbeef",
	})
	require.ErrorIs(t, err, ErrGatewayVerification)
	p := env.reloadPayment(t, resp.Payment.ID)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	require.NotNil(t, p.GatewayPaymentID)
	assert.Equal(t, "pay_same", *p.GatewayPaymentID)
	assert.WithinDuration(t, *endBefore, *env.entitlement(t, user.ID).EndDate, time.Second)
	assert.True(t, env.reloadUser(t, user.ID).IsPremium)

	_, err = env.payments.ConfirmPayment(ctx, user.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: "pay_other",
		Signature:     env.gw.Sign(resp.OrderID, "pay_other"),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestBadSignatureFailsPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	resp := env.checkout(t, user, plan)
	_, err := env.payments.ConfirmPayment(ctx, user.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: "pay_forged",
		Signature:     "deadbeef",
	})
	require.ErrorIs(t, err, ErrGatewayVerification)

	p := env.reloadPayment(t, resp.Payment.ID)
	assert.Equal(t, models.PaymentFailed, p.Status)
	assert.Nil(t, p.GatewayPaymentID)

	var count int64
	require.NoError(t, env.db.Model(&models.Entitlement{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)
	assert.False(t, env.reloadUser(t, user.ID).IsPremium)
}

func TestConfirmRejectsOtherUsersPayment(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t)
	other := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	resp := env.checkout(t, owner, plan)
	_, err := env.payments.ConfirmPayment(context.Background(), other.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: "pay_x",
		Signature:     env.gw.Sign(resp.OrderID, "pay_x"),
	})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	assert.Equal(t, models.PaymentPending, env.reloadPayment(t, resp.Payment.ID).Status)
}

func TestTransactionRefCannotBeReused(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	monthly := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)
	yearly := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)

	env.confirm(t, user, env.checkout(t, user, monthly), "pay_dup")

	resp := env.checkout(t, user, yearly)
	_, err := env.payments.ConfirmPayment(context.Background(), user.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: "pay_dup",
		Signature:     env.gw.Sign(resp.OrderID, "pay_dup"),
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, models.PaymentPending, env.reloadPayment(t, resp.Payment.ID).Status)
}

func TestCheckoutResumesPendingPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	first := env.checkout(t, user, plan)
	assert.False(t, first.Resumed)

	env.clock.Advance(48 * time.Hour)
	again, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	require.NoError(t, err)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.Payment.ID, again.Payment.ID)
	assert.Equal(t, first.OrderID, again.OrderID)
	assert.Equal(t, first.Amount, again.Amount)
	assert.Equal(t, "fake_key", again.KeyID)

	var pending int64
	require.NoError(t, env.db.Model(&models.Payment{}).
		Where("user_id = ? AND status = ?", user.ID, models.PaymentPending).
		Count(&pending).Error)
	assert.Equal(t, int64(1), pending)

	// The resumed order is still the one the gateway signs against.
	env.confirm(t, user, again, "pay_resumed")
	assert.True(t, env.reloadUser(t, user.ID).IsPremium)

	other := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)
	_, err = env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: other.ID})
	assert.NoError(t, err)
}

func TestCheckoutSupersedesStalePendingPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	old := env.checkout(t, user, plan)
	require.NoError(t, env.db.Model(&models.Plan{}).Where("id = ?", plan.ID).
		Update("price", decimal.RequireFromString("599")).Error)

	fresh, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	require.NoError(t, err)
	assert.False(t, fresh.Resumed)
	assert.NotEqual(t, old.Payment.ID, fresh.Payment.ID)
	assert.Equal(t, int64(59900), fresh.Amount)
	assert.Equal(t, models.PaymentFailed, env.reloadPayment(t, old.Payment.ID).Status)
}

func TestCheckoutWaitsForOrderInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	planID := plan.ID
	opening := models.Payment{
		UserID:    user.ID,
		PlanID:    &planID,
		Amount:    plan.Price,
		Currency:  "INR",
		Gateway:   "fake",
		Status:    models.PaymentPending,
		CreatedAt: env.clock.Now(),
	}
	require.NoError(t, env.db.Omit(clause.Associations).Create(&opening).Error)

	_, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	assert.ErrorIs(t, err, ErrDuplicatePending)

	env.clock.Advance(2 * time.Minute)
	resp, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	require.NoError(t, err)
	assert.NotEqual(t, opening.ID, resp.Payment.ID)
	assert.Equal(t, models.PaymentFailed, env.reloadPayment(t, opening.ID).Status)
}

func TestCheckoutFailsPaymentWhenOrderCannotBeStored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	const name = "test:fail_order_store"
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register(name, func(db *gorm.DB) {
		if m, ok := db.Statement.Dest.(map[string]interface{}); ok {
			if _, ok := m["gateway_order_id"]; ok {
				db.AddError(errors.New("db down"))
			}
		}
	}))

	_, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	require.ErrorContains(t, err, "db down")
	require.NoError(t, env.db.Callback().Update().Remove(name))

	var payments []models.Payment
	require.NoError(t, env.db.Where("user_id = ?", user.ID).Find(&payments).Error)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentFailed, payments[0].Status)

	// Nothing is left pending, so the user can check out straight away.
	resp := env.checkout(t, user, plan)
	assert.False(t, resp.Resumed)
	assert.NotEqual(t, payments[0].ID, resp.Payment.ID)
}

func TestConfirmRollsBackWhenProjectionFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)
	resp := env.checkout(t, user, plan)

	const name = "test:fail_user_flags"
	require.NoError(t, env.db.Callback().Update().Before("gorm:update").Register(name, func(db *gorm.DB) {
		if db.Statement.Table == "users" {
			db.AddError(errors.New("db down"))
		}
	}))

	req := &dto.ConfirmPaymentRequest{
		TransactionID: "pay_rollback",
		Signature:     env.gw.Sign(resp.OrderID, "pay_rollback"),
	}
	_, err := env.payments.ConfirmPayment(ctx, user.ID, resp.Payment.ID, req)
	require.ErrorContains(t, err, "db down")

	p := env.reloadPayment(t, resp.Payment.ID)
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Nil(t, p.GatewayPaymentID)
	assert.Nil(t, p.CompletedAt)
	var count int64
	require.NoError(t, env.db.Model(&models.Entitlement{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.False(t, env.reloadUser(t, user.ID).IsPremium)

	require.NoError(t, env.db.Callback().Update().Remove(name))
	got, err := env.payments.ConfirmPayment(ctx, user.ID, resp.Payment.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, got.Status)
	assert.True(t, env.entitlement(t, user.ID).IsActive)
	env.requireFlagsMatch(t, user.ID)
}

func TestCreatePaymentPlanChecks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)

	_, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: uuid.New()})
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	plan := env.createPlan(t, "Retired", models.CategoryBasic, "99", models.PeriodMonthly)
	inactive := false
	_, err = env.plans.Update(ctx, plan.ID, &dto.UpdatePlanRequest{IsActive: &inactive})
	require.NoError(t, err)

	_, err = env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	assert.ErrorIs(t, err, ErrPlanUnavailable)

	_, err = env.payments.CreatePayment(ctx, uuid.New(), &dto.CreatePaymentRequest{PlanID: plan.ID})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGatewayFailureFailsPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	env.gw.FailErr = errors.New("connection refused")
	_, err := env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	require.ErrorIs(t, err, ErrGatewayUnavailable)

	payments, err := env.payments.ListUserPayments(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentFailed, payments[0].Status)
	assert.Equal(t, "gateway order failed", payments[0].StatusReason)

	env.gw.FailErr = nil
	_, err = env.payments.CreatePayment(ctx, user.ID, &dto.CreatePaymentRequest{PlanID: plan.ID})
	assert.NoError(t, err)
}

func TestRefundRevokesWhenNothingRemains(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	p := env.purchase(t, user, plan)
	refunded, err := env.payments.MarkRefunded(context.Background(), p.ID, "customer request")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, refunded.Status)

	stored := env.reloadPayment(t, p.ID)
	assert.Equal(t, models.PaymentRefunded, stored.Status)
	assert.Equal(t, "customer request", stored.StatusReason)

	assert.False(t, env.entitlement(t, user.ID).IsActive)
	u := env.reloadUser(t, user.ID)
	assert.False(t, u.IsPremium)
	assert.Equal(t, models.PlanTypeFree, u.PlanType)
	env.requireFlagsMatch(t, user.ID)
}

func TestRefundWithAnotherCompletedPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	monthly := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)
	yearly := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)

	first := env.purchase(t, user, monthly)
	env.clock.Advance(time.Hour)
	second := env.purchase(t, user, yearly)
	env.clock.Advance(time.Hour)
	third := env.purchase(t, user, monthly)

	ent := env.entitlement(t, user.ID)
	require.NotNil(t, ent.PaymentID)
	assert.Equal(t, third.ID, *ent.PaymentID)

	// Refunding a payment that is not projected leaves access alone.
	_, err := env.payments.MarkRefunded(ctx, first.ID, "")
	require.NoError(t, err)
	ent = env.entitlement(t, user.ID)
	assert.True(t, ent.IsActive)
	assert.Equal(t, third.ID, *ent.PaymentID)
	assert.Equal(t, models.CategoryMonthly, env.reloadUser(t, user.ID).PlanType)
	env.requireFlagsMatch(t, user.ID)

	// Refunding the projected payment falls back to the latest remaining one.
	env.clock.Advance(time.Hour)
	_, err = env.payments.MarkRefunded(ctx, third.ID, "")
	require.NoError(t, err)
	ent = env.entitlement(t, user.ID)
	assert.True(t, ent.IsActive)
	assert.Equal(t, yearly.ID, *ent.PlanID)
	assert.Equal(t, second.ID, *ent.PaymentID)
	assert.WithinDuration(t, *second.EndDate, *ent.EndDate, time.Second)

	u := env.reloadUser(t, user.ID)
	assert.True(t, u.IsPremium)
	assert.Equal(t, models.CategoryYearly, u.PlanType)
	env.requireFlagsMatch(t, user.ID)
}

func TestRefundIgnoresExpiredPayments(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	monthly := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)
	yearly := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)

	env.purchase(t, user, monthly)
	env.clock.Advance(40 * 24 * time.Hour)
	p := env.purchase(t, user, yearly)

	_, err := env.payments.MarkRefunded(context.Background(), p.ID, "")
	require.NoError(t, err)
	assert.False(t, env.entitlement(t, user.ID).IsActive)
	env.requireFlagsMatch(t, user.ID)
}

func TestInvalidTransitionsAreRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	pending := env.checkout(t, user, plan).Payment
	_, err := env.payments.MarkRefunded(ctx, pending.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, models.PaymentPending, terr.From)
	assert.Equal(t, models.PaymentRefunded, terr.To)

	_, err = env.payments.MarkFailed(ctx, pending.ID, "abandoned")
	require.NoError(t, err)

	_, err = env.payments.Approve(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.payments.MarkFailed(ctx, pending.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	completed := env.purchase(t, user, plan)
	_, err = env.payments.MarkFailed(ctx, completed.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.payments.MarkRefunded(ctx, completed.ID, "")
	require.NoError(t, err)
	_, err = env.payments.MarkRefunded(ctx, completed.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = env.payments.Approve(ctx, completed.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.payments.Approve(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestApproveGrantsEntitlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)

	pending := env.checkout(t, user, plan).Payment
	p, err := env.payments.ApplyAction(ctx, pending.ID, &dto.PaymentActionRequest{Action: "approve"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Nil(t, p.GatewayPaymentID)

	ent := env.entitlement(t, user.ID)
	assert.True(t, ent.IsActive)
	assert.WithinDuration(t, env.clock.Now().Add(365*24*time.Hour), *ent.EndDate, time.Second)
	env.requireFlagsMatch(t, user.ID)

	_, err = env.payments.ApplyAction(ctx, pending.ID, &dto.PaymentActionRequest{Action: "delete"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRenewalKeepsStartDate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t)
	monthly := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)
	yearly := env.createPlan(t, "Yearly", models.CategoryYearly, "4999", models.PeriodYearly)

	start := env.clock.Now()
	env.purchase(t, user, monthly)

	env.clock.Advance(10 * 24 * time.Hour)
	env.purchase(t, user, monthly)
	ent := env.entitlement(t, user.ID)
	assert.WithinDuration(t, start, ent.StartDate, time.Second)
	assert.WithinDuration(t, env.clock.Now().Add(30*24*time.Hour), *ent.EndDate, time.Second)

	env.clock.Advance(24 * time.Hour)
	env.purchase(t, user, yearly)
	ent = env.entitlement(t, user.ID)
	assert.WithinDuration(t, env.clock.Now(), ent.StartDate, time.Second)
	assert.Equal(t, models.CategoryYearly, env.reloadUser(t, user.ID).PlanType)
}

func TestPlanChangeKeepsCompletedEndDates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	p := env.purchase(t, user, plan)
	yearly := models.PeriodYearly
	_, err := env.plans.Update(ctx, plan.ID, &dto.UpdatePlanRequest{BillingPeriod: &yearly})
	require.NoError(t, err)

	stored := env.reloadPayment(t, p.ID)
	assert.WithinDuration(t, *p.EndDate, *stored.EndDate, time.Second)
}

func TestListPaymentsFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.createUser(t)
	bob := env.createUser(t)
	plan := env.createPlan(t, "Monthly", models.CategoryMonthly, "499", models.PeriodMonthly)

	env.confirm(t, alice, env.checkout(t, alice, plan), "pay_alice_1")
	env.clock.Advance(48 * time.Hour)
	pending := env.checkout(t, bob, plan)

	all, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(2), all.Total)
	assert.Equal(t, 100, all.Limit)
	assert.Equal(t, pending.Payment.ID, all.Payments[0].ID)

	byStatus, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Status: models.PaymentCompleted})
	require.NoError(t, err)
	require.Len(t, byStatus.Payments, 1)
	assert.Equal(t, alice.ID, byStatus.Payments[0].UserID)

	search, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Search: "alice"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), search.Total)

	byEmail, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Search: strings.ToUpper(bob.Email[:6])})
	require.NoError(t, err)
	require.Len(t, byEmail.Payments, 1)
	assert.Equal(t, bob.ID, byEmail.Payments[0].UserID)

	byPlan, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Search: "month"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byPlan.Total)

	byUsername, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Search: "seek"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byUsername.Total)

	none, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Search: "nobody"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), none.Total)

	since := env.clock.Now().Add(-24 * time.Hour)
	recent, err := env.payments.ListPayments(ctx, dto.PaymentFilter{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent.Payments, 1)
	assert.Equal(t, bob.ID, recent.Payments[0].UserID)

	mine, err := env.payments.ListUserPayments(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].Plan)
	assert.Equal(t, plan.Name, mine[0].Plan.Name)

	_, err = env.payments.GetUserPayment(ctx, alice.ID, pending.Payment.ID)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	got, err := env.payments.GetUserPayment(ctx, bob.ID, pending.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, got.Status)
}

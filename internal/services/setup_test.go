package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/notify"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSecret = "test_secret"

type testEnv struct {
	db           *gorm.DB
	clock        *clock.FakeClock
	gw           *gateway.Fake
	users        *UserDirectory
	plans        *PlanService
	entitlements *EntitlementService
	payments     *PaymentService
	sweeper      *Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	dsn := fmt.Sprintf("file:billing_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: clk.Now,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))

	gw := gateway.NewFake(testSecret)
	users := NewUserDirectory(db)
	entitlements := NewEntitlementService(db, users, clk)
	payments := NewPaymentService(db, gw, users, entitlements, notify.Nop{}, clk, "INR")

	return &testEnv{
		db:           db,
		clock:        clk,
		gw:           gw,
		users:        users,
		plans:        NewPlanService(db),
		entitlements: entitlements,
		payments:     payments,
		sweeper:      NewSweeper(db, payments, entitlements, notify.Nop{}, clk, 24*time.Hour),
	}
}

func (e *testEnv) createUser(t *testing.T) *models.User {
	t.Helper()
	user := &models.User{
		Email:    uuid.NewString()[:8] + "@example.com",
		Username: "seeker",
		Role:     models.RoleCustomer,
		PlanType: models.PlanTypeFree,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createPlan(t *testing.T, name, category, price, period string) *models.Plan {
	t.Helper()
	plan, err := e.plans.Create(context.Background(), &dto.CreatePlanRequest{
		Name:          name,
		Category:      category,
		Price:         decimal.RequireFromString(price),
		BillingPeriod: period,
		Features:      []string{"daily_horoscope", "kundli"},
	})
	require.NoError(t, err)
	return plan
}

// checkout creates a payment for plan and returns it with its gateway order.
func (e *testEnv) checkout(t *testing.T, user *models.User, plan *models.Plan) *dto.CreatePaymentResponse {
	t.Helper()
	resp, err := e.payments.CreatePayment(context.Background(), user.ID, &dto.CreatePaymentRequest{
		PlanID:        plan.ID,
		PaymentMethod: "upi",
	})
	require.NoError(t, err)
	return resp
}

func (e *testEnv) confirm(t *testing.T, user *models.User, resp *dto.CreatePaymentResponse, txn string) *models.Payment {
	t.Helper()
	p, err := e.payments.ConfirmPayment(context.Background(), user.ID, resp.Payment.ID, &dto.ConfirmPaymentRequest{
		TransactionID: txn,
		Signature:     e.gw.Sign(resp.OrderID, txn),
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) purchase(t *testing.T, user *models.User, plan *models.Plan) *models.Payment {
	t.Helper()
	resp := e.checkout(t, user, plan)
	return e.confirm(t, user, resp, "pay_"+uuid.NewString()[:12])
}

func (e *testEnv) reloadUser(t *testing.T, id uuid.UUID) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, "id = ?", id).Error)
	return &user
}

func (e *testEnv) reloadPayment(t *testing.T, id uuid.UUID) *models.Payment {
	t.Helper()
	var p models.Payment
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return &p
}

func (e *testEnv) entitlement(t *testing.T, userID uuid.UUID) *models.Entitlement {
	t.Helper()
	var ent models.Entitlement
	require.NoError(t, e.db.First(&ent, "user_id = ?", userID).Error)
	return &ent
}

// requireFlagsMatch checks that the user's premium flag mirrors whether the
// entitlement grants access right now.
func (e *testEnv) requireFlagsMatch(t *testing.T, userID uuid.UUID) {
	t.Helper()
	user := e.reloadUser(t, userID)

	var ent models.Entitlement
	err := e.db.First(&ent, "user_id = ?", userID).Error
	valid := err == nil && ent.ValidAt(e.clock.Now())
	require.Equal(t, valid, user.IsPremium, "is_premium out of step with entitlement")
	if !valid {
		require.Equal(t, models.PlanTypeFree, user.PlanType)
	}
}

package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntitlementService projects completed payments onto the user's single
// Entitlement row and keeps the user flags in step with it.
type EntitlementService struct {
	db    *gorm.DB
	users *UserDirectory
	clock clock.Clock
}

func NewEntitlementService(db *gorm.DB, users *UserDirectory, clk clock.Clock) *EntitlementService {
	return &EntitlementService{db: db, users: users, clock: clk}
}

// Apply grants the entitlement bought by payment. It must run on the
// transaction that completed the payment; the caller holds the user lock.
//
// Renewing the plan that is already active keeps the original start date;
// anything else starts a fresh window. The end date always comes from the
// payment, which computed it once at completion.
func (s *EntitlementService) Apply(tx *gorm.DB, payment *models.Payment, plan *models.Plan) (*models.Entitlement, error) {
	now := s.clock.Now()

	var ent models.Entitlement
	err := forUpdate(tx).Where("user_id = ?", payment.UserID).First(&ent).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		ent = models.Entitlement{UserID: payment.UserID, StartDate: now}
	case err != nil:
		return nil, fmt.Errorf("load entitlement: %w", err)
	default:
		renewal := ent.ValidAt(now) && ent.PlanID != nil && *ent.PlanID == plan.ID
		if !renewal {
			ent.StartDate = now
		}
	}

	planID, paymentID := plan.ID, payment.ID
	ent.PlanID = &planID
	ent.PaymentID = &paymentID
	ent.IsActive = true
	ent.EndDate = payment.EndDate

	if err := tx.Omit(clause.Associations).Save(&ent).Error; err != nil {
		return nil, fmt.Errorf("save entitlement: %w", err)
	}
	if err := s.users.SetEntitlementFlags(tx, payment.UserID, true, plan.Category); err != nil {
		return nil, fmt.Errorf("set user flags: %w", err)
	}

	ent.Plan = plan
	return &ent, nil
}

// Revoke deactivates the user's entitlement and resets the user to free.
func (s *EntitlementService) Revoke(tx *gorm.DB, userID uuid.UUID) error {
	if err := tx.Model(&models.Entitlement{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate entitlement: %w", err)
	}
	return s.users.SetEntitlementFlags(tx, userID, false, models.PlanTypeFree)
}

// Cancel is the user-initiated stop. Payments are left untouched.
func (s *EntitlementService) Cancel(ctx context.Context, userID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.lockUser(tx, userID); err != nil {
			return err
		}
		var ent models.Entitlement
		if err := forUpdate(tx).Where("user_id = ? AND is_active = ?", userID, true).First(&ent).Error; err != nil {
			return notFound(err, ErrNoActiveEntitlement)
		}
		return s.Revoke(tx, userID)
	})
	if err == nil {
		metrics.EntitlementChanges.WithLabelValues("revoke", "cancelled").Inc()
	}
	return err
}

// expire settles userID's entitlement once it is past its end. When another
// completed payment still grants access the entitlement is rebuilt from the
// most recent one ("reproject"); otherwise access is revoked ("revoke").
// The row is re-read under lock, so a renewal that landed after the sweep's
// scan is left alone and change is empty.
func (s *EntitlementService) expire(ctx context.Context, userID uuid.UUID) (ent *models.Entitlement, change string, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.lockUser(tx, userID); err != nil {
			return err
		}
		var current models.Entitlement
		if err := forUpdate(tx).Where("user_id = ?", userID).First(&current).Error; err != nil {
			return notFound(err, ErrNoActiveEntitlement)
		}
		now := s.clock.Now()
		if !current.IsActive || current.ValidAt(now) {
			return nil
		}

		payment, plan, err := s.latestGranting(tx, userID, now, uuid.Nil)
		if err != nil {
			return err
		}
		if payment != nil {
			if ent, err = s.Apply(tx, payment, plan); err != nil {
				return err
			}
			change = "reproject"
			return nil
		}

		if err := s.Revoke(tx, userID); err != nil {
			return err
		}
		current.IsActive = false
		ent = &current
		change = "revoke"
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return ent, change, nil
}

// latestGranting finds the most recently completed payment of userID, other
// than exclude, that still grants access at now. It returns nils when there
// is none.
func (s *EntitlementService) latestGranting(tx *gorm.DB, userID uuid.UUID, now time.Time, exclude uuid.UUID) (*models.Payment, *models.Plan, error) {
	var payment models.Payment
	err := tx.Where("user_id = ? AND status = ? AND plan_id IS NOT NULL AND id <> ?",
		userID, models.PaymentCompleted, exclude).
		Where("(end_date IS NULL OR end_date > ?)", now).
		Order("completed_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	var plan models.Plan
	if err := tx.First(&plan, "id = ?", *payment.PlanID).Error; err != nil {
		return nil, nil, notFound(err, ErrPlanNotFound)
	}
	return &payment, &plan, nil
}

// Current is the read model behind GET /entitlement.
func (s *EntitlementService) Current(ctx context.Context, userID uuid.UUID) (*dto.EntitlementResponse, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &dto.EntitlementResponse{IsPremium: user.IsPremium, PlanType: user.PlanType}

	var ent models.Entitlement
	err = s.db.WithContext(ctx).Preload("Plan").Where("user_id = ?", userID).First(&ent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resp, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	resp.IsActive = ent.ValidAt(now)
	resp.Plan = ent.Plan
	start := ent.StartDate
	resp.StartDate = &start
	resp.EndDate = ent.EndDate
	if resp.IsActive && ent.EndDate != nil {
		days := int(math.Floor(ent.EndDate.Sub(now).Hours() / 24))
		resp.DaysRemaining = &days
	}
	return resp, nil
}

package services

import (
	"context"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PlanService struct {
	db *gorm.DB
}

func NewPlanService(db *gorm.DB) *PlanService {
	return &PlanService{db: db}
}

func (s *PlanService) ListActive(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("price ASC").Find(&plans).Error
	return plans, err
}

func (s *PlanService) ListAll(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	err := s.db.WithContext(ctx).Order("price ASC").Find(&plans).Error
	return plans, err
}

func (s *PlanService) Get(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := s.db.WithContext(ctx).First(&plan, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	return &plan, nil
}

func (s *PlanService) Create(ctx context.Context, req *dto.CreatePlanRequest) (*models.Plan, error) {
	if err := dto.Validate(req); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if req.Price.IsNegative() {
		return nil, validationError("price must not be negative")
	}

	features := req.Features
	if features == nil {
		features = []string{}
	}

	plan := models.Plan{
		Name:          req.Name,
		Category:      req.Category,
		Description:   req.Description,
		Price:         req.Price,
		BillingPeriod: req.BillingPeriod,
		Features:      datatypes.JSONSlice[string](features),
		IsActive:      req.IsActive == nil || *req.IsActive,
	}
	if err := s.db.WithContext(ctx).Create(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	return &plan, nil
}

// Update applies a partial edit. Payments already completed keep the end date
// computed from the plan as it was when they completed.
func (s *PlanService) Update(ctx context.Context, id uuid.UUID, req *dto.UpdatePlanRequest) (*models.Plan, error) {
	if err := dto.Validate(req); err != nil {
		return nil, validationError("%s", err.Error())
	}
	if req.Price != nil && req.Price.IsNegative() {
		return nil, validationError("price must not be negative")
	}

	var plan models.Plan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&plan, "id = ?", id).Error; err != nil {
			return notFound(err, ErrPlanNotFound)
		}

		if req.Name != nil {
			plan.Name = *req.Name
		}
		if req.Category != nil {
			plan.Category = *req.Category
		}
		if req.Description != nil {
			plan.Description = *req.Description
		}
		if req.Price != nil {
			plan.Price = *req.Price
		}
		if req.BillingPeriod != nil {
			plan.BillingPeriod = *req.BillingPeriod
		}
		if req.Features != nil {
			plan.Features = datatypes.JSONSlice[string](*req.Features)
		}
		if req.IsActive != nil {
			plan.IsActive = *req.IsActive
		}

		return tx.Save(&plan).Error
	})
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// Delete removes a plan nobody has bought. A plan referenced by any payment or
// entitlement is only hidden, so the payment history keeps its plan.
func (s *PlanService) Delete(ctx context.Context, id uuid.UUID) (soft bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var plan models.Plan
		if err := forUpdate(tx).First(&plan, "id = ?", id).Error; err != nil {
			return notFound(err, ErrPlanNotFound)
		}

		var payments, entitlements int64
		if err := tx.Model(&models.Payment{}).Where("plan_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Entitlement{}).Where("plan_id = ?", id).Count(&entitlements).Error; err != nil {
			return err
		}

		if payments+entitlements > 0 {
			soft = true
			return tx.Model(&plan).Update("is_active", false).Error
		}
		return tx.Delete(&plan).Error
	})
	return soft, err
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/gateway"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxPageSize     = 100
	defaultPageSize = 20

	// orderInFlight is how long a pending payment without a stored gateway
	// order is assumed to still be opening one.
	orderInFlight = time.Minute
)

// PaymentService owns the payment status machine. Every transition that
// grants or removes access runs the entitlement change on the same
// transaction, under the user's row lock.
type PaymentService struct {
	db           *gorm.DB
	gateway      gateway.Client
	entitlements *EntitlementService
	users        *UserDirectory
	mail         mailer
	clock        clock.Clock
	currency     string
}

func NewPaymentService(db *gorm.DB, gw gateway.Client, users *UserDirectory, entitlements *EntitlementService, notifier notify.Notifier, clk clock.Clock, currency string) *PaymentService {
	return &PaymentService{
		db:           db,
		gateway:      gw,
		entitlements: entitlements,
		users:        users,
		mail:         mailer{db: db, notifier: notifier},
		clock:        clk,
		currency:     currency,
	}
}

// CreatePayment opens a pending payment for planID and a matching gateway
// order. If the gateway refuses, the payment is failed and
// ErrGatewayUnavailable is returned.
//
// A user has at most one pending payment per plan. Coming back to checkout
// resumes that payment and its order while the price is unchanged; a pending
// payment whose order never got stored is replaced once orderInFlight has
// passed.
func (s *PaymentService) CreatePayment(ctx context.Context, userID uuid.UUID, req *dto.CreatePaymentRequest) (*dto.CreatePaymentResponse, error) {
	if err := dto.Validate(req); err != nil {
		return nil, validationError("%s", err.Error())
	}

	var (
		payment models.Payment
		resumed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.lockUser(tx, userID); err != nil {
			return err
		}

		var plan models.Plan
		if err := tx.First(&plan, "id = ?", req.PlanID).Error; err != nil {
			return notFound(err, ErrPlanNotFound)
		}
		if !plan.IsActive {
			return ErrPlanUnavailable
		}

		var existing models.Payment
		err := forUpdate(tx).
			Where("user_id = ? AND plan_id = ? AND status = ?", userID, plan.ID, models.PaymentPending).
			Order("created_at DESC").
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case existing.GatewayOrderID != "" && existing.Amount.Equal(plan.Price) && existing.Currency == s.currency:
			payment = existing
			payment.Plan = &plan
			resumed = true
			return nil
		case existing.GatewayOrderID == "" && s.clock.Now().Sub(existing.CreatedAt) < orderInFlight:
			return ErrDuplicatePending
		default:
			if err := s.setStatus(tx, &existing, models.PaymentFailed, "superseded by a new checkout", nil); err != nil {
				return err
			}
		}

		planID := plan.ID
		payment = models.Payment{
			UserID:        userID,
			PlanID:        &planID,
			Amount:        plan.Price,
			Currency:      s.currency,
			PaymentMethod: req.PaymentMethod,
			Gateway:       s.gateway.Name(),
			Status:        models.PaymentPending,
			CreatedAt:     s.clock.Now(),
		}
		if err := tx.Omit(clause.Associations).Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		payment.Plan = &plan
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resumed {
		return &dto.CreatePaymentResponse{
			Payment:  &payment,
			KeyID:    s.gateway.KeyID(),
			OrderID:  payment.GatewayOrderID,
			Amount:   gateway.MinorUnits(payment.Amount),
			Currency: payment.Currency,
			Resumed:  true,
		}, nil
	}

	order, err := s.gateway.CreateOrder(ctx, payment.Amount, payment.Currency, payment.ID.String())
	if err != nil {
		slog.Error("gateway order failed",
			"payment_id", payment.ID.String(),
			"user_id", userID.String(),
			"action", "create_order",
			"error", err.Error(),
		)
		s.abandon(ctx, payment.ID, "gateway order failed")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Update("gateway_order_id", order.ID).Error; err != nil {
		slog.Error("storing gateway order failed",
			"payment_id", payment.ID.String(),
			"user_id", userID.String(),
			"action", "create_order",
			"error", err.Error(),
		)
		s.abandon(ctx, payment.ID, "gateway order not stored")
		return nil, fmt.Errorf("store gateway order: %w", err)
	}
	payment.GatewayOrderID = order.ID

	return &dto.CreatePaymentResponse{
		Payment:  &payment,
		KeyID:    s.gateway.KeyID(),
		OrderID:  order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

// abandon fails a payment whose checkout could not be opened.
func (s *PaymentService) abandon(ctx context.Context, paymentID uuid.UUID, reason string) {
	if _, err := s.MarkFailed(ctx, paymentID, reason); err != nil {
		slog.Error("failed to fail abandoned payment", "payment_id", paymentID.String(), "error", err.Error())
	}
}

// ConfirmPayment settles a pending payment with the gateway's confirmation.
// Repeating a confirmation with the same transaction ref and a valid
// signature returns the completed payment unchanged. A bad signature returns
// ErrGatewayVerification; a pending payment is failed and the failure is
// committed, a completed one is left as it is.
func (s *PaymentService) ConfirmPayment(ctx context.Context, userID, paymentID uuid.UUID, req *dto.ConfirmPaymentRequest) (*models.Payment, error) {
	if err := dto.Validate(req); err != nil {
		return nil, validationError("%s", err.Error())
	}

	var (
		payment      *models.Payment
		plan         *models.Plan
		verifyFailed bool
		replay       bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.lockUser(tx, userID); err != nil {
			return err
		}
		p, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return ErrPaymentNotFound
		}
		payment = p

		signed := s.gateway.VerifySignature(p.GatewayOrderID, req.TransactionID, req.Signature)

		if p.Status == models.PaymentCompleted && p.GatewayPaymentID != nil && *p.GatewayPaymentID == req.TransactionID {
			if !signed {
				verifyFailed = true
				return nil
			}
			replay = true
			return nil
		}
		if !models.CanTransition(p.Status, models.PaymentCompleted) {
			return s.rejectTransition(p, models.PaymentCompleted)
		}

		if !signed {
			verifyFailed = true
			return s.setStatus(tx, p, models.PaymentFailed, "signature verification failed", nil)
		}

		var used int64
		if err := tx.Model(&models.Payment{}).
			Where("gateway_payment_id = ? AND id <> ?", req.TransactionID, p.ID).
			Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return validationError("transaction %s is already attached to another payment", req.TransactionID)
		}

		txRef := req.TransactionID
		plan, err = s.complete(tx, p, &txRef)
		return err
	})
	if err != nil {
		return nil, err
	}
	if verifyFailed {
		slog.Warn("payment signature rejected",
			"payment_id", payment.ID.String(),
			"user_id", userID.String(),
			"action", "confirm",
		)
		return nil, ErrGatewayVerification
	}
	if !replay {
		s.afterCompleted(ctx, payment, plan, "confirmed")
	}
	return payment, nil
}

// Approve is the manual dashboard path for payments settled outside the
// gateway flow.
func (s *PaymentService) Approve(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	var (
		payment *models.Payment
		plan    *models.Plan
	)
	err := s.withPaymentLocked(ctx, paymentID, func(tx *gorm.DB, p *models.Payment) error {
		if !models.CanTransition(p.Status, models.PaymentCompleted) {
			return s.rejectTransition(p, models.PaymentCompleted)
		}
		var err error
		plan, err = s.complete(tx, p, nil)
		payment = p
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterCompleted(ctx, payment, plan, "approved")
	return payment, nil
}

// MarkRefunded reverses a completed payment. Access is revoked when the user
// has no other completed, unexpired payment; otherwise, if the refunded
// payment is the one currently projected, the entitlement is rebuilt from the
// most recent remaining payment.
func (s *PaymentService) MarkRefunded(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	var (
		payment *models.Payment
		change  string
	)
	err := s.withPaymentLocked(ctx, paymentID, func(tx *gorm.DB, p *models.Payment) error {
		if !models.CanTransition(p.Status, models.PaymentRefunded) {
			return s.rejectTransition(p, models.PaymentRefunded)
		}
		if err := s.setStatus(tx, p, models.PaymentRefunded, reason, nil); err != nil {
			return err
		}
		payment = p

		remaining, plan, err := s.entitlements.latestGranting(tx, p.UserID, s.clock.Now(), p.ID)
		if err != nil {
			return err
		}
		if remaining == nil {
			change = "revoke"
			return s.entitlements.Revoke(tx, p.UserID)
		}

		var ent models.Entitlement
		if err := forUpdate(tx).Where("user_id = ?", p.UserID).First(&ent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !ent.IsActive || ent.PaymentID == nil || *ent.PaymentID != p.ID {
			return nil
		}

		if _, err := s.entitlements.Apply(tx, remaining, plan); err != nil {
			return err
		}
		change = "reproject"
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change != "" {
		metrics.EntitlementChanges.WithLabelValues(change, "refund").Inc()
	}
	slog.Info("payment refunded",
		"payment_id", payment.ID.String(),
		"user_id", payment.UserID.String(),
		"action", "refund",
		"entitlement", change,
	)
	subject, body := paymentRefundedEmail(payment)
	s.mail.toUser(ctx, payment.UserID, subject, body)
	return payment, nil
}

// MarkFailed closes a pending or processing payment without granting access.
func (s *PaymentService) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	var payment *models.Payment
	err := s.withPaymentLocked(ctx, paymentID, func(tx *gorm.DB, p *models.Payment) error {
		if !models.CanTransition(p.Status, models.PaymentFailed) {
			return s.rejectTransition(p, models.PaymentFailed)
		}
		payment = p
		return s.setStatus(tx, p, models.PaymentFailed, reason, nil)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ApplyAction dispatches an admin dashboard action.
func (s *PaymentService) ApplyAction(ctx context.Context, paymentID uuid.UUID, req *dto.PaymentActionRequest) (*models.Payment, error) {
	if err := dto.Validate(req); err != nil {
		return nil, validationError("%s", err.Error())
	}
	switch req.Action {
	case "approve":
		return s.Approve(ctx, paymentID)
	case "refund":
		return s.MarkRefunded(ctx, paymentID, req.Reason)
	default:
		return s.MarkFailed(ctx, paymentID, req.Reason)
	}
}

// failIfStale fails paymentID if it is still pending once locked. It reports
// whether the payment was changed.
func (s *PaymentService) failIfStale(ctx context.Context, paymentID uuid.UUID, reason string) (bool, error) {
	changed := false
	err := s.withPaymentLocked(ctx, paymentID, func(tx *gorm.DB, p *models.Payment) error {
		if p.Status != models.PaymentPending {
			return nil
		}
		changed = true
		return s.setStatus(tx, p, models.PaymentFailed, reason, nil)
	})
	return changed, err
}

func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.WithContext(ctx).Preload("Plan").First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &payment, nil
}

// GetUserPayment hides other users' payments behind ErrPaymentNotFound.
func (s *PaymentService) GetUserPayment(ctx context.Context, userID, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.UserID != userID {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.WithContext(ctx).Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&payments).Error
	return payments, err
}

func (s *PaymentService) ListPayments(ctx context.Context, f dto.PaymentFilter) (*dto.PaymentListResponse, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	query := s.db.WithContext(ctx).Model(&models.Payment{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Gateway != "" {
		query = query.Where("gateway = ?", f.Gateway)
	}
	if f.Since != nil {
		query = query.Where("created_at >= ?", *f.Since)
	}
	if f.Search != "" {
		// Matches order/transaction refs, the buyer's email or username, and
		// the plan name, case-insensitively.
		like := "%" + strings.ToLower(f.Search) + "%"
		users := s.db.Model(&models.User{}).Select("id").
			Where("LOWER(email) LIKE ? OR LOWER(username) LIKE ?", like, like)
		plans := s.db.Model(&models.Plan{}).Select("id").
			Where("LOWER(name) LIKE ?", like)
		query = query.Where(
			"(LOWER(gateway_order_id) LIKE ? OR LOWER(gateway_payment_id) LIKE ? OR user_id IN (?) OR plan_id IN (?))",
			like, like, users, plans,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var payments []models.Payment
	if err := query.Preload("Plan").
		Order("created_at DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&payments).Error; err != nil {
		return nil, err
	}

	return &dto.PaymentListResponse{Payments: payments, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// complete moves p to completed and projects the entitlement. The end date
// is computed here, once, from the plan as it is now.
func (s *PaymentService) complete(tx *gorm.DB, p *models.Payment, txRef *string) (*models.Plan, error) {
	if p.PlanID == nil {
		return nil, ErrPlanNotFound
	}
	var plan models.Plan
	if err := tx.First(&plan, "id = ?", *p.PlanID).Error; err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}

	now := s.clock.Now()
	end := plan.EndsAt(now)
	fields := map[string]interface{}{
		"end_date":     end,
		"completed_at": now,
	}
	if txRef != nil {
		fields["gateway_payment_id"] = *txRef
	}
	if err := s.setStatus(tx, p, models.PaymentCompleted, "", fields); err != nil {
		return nil, err
	}
	p.EndDate = end
	p.CompletedAt = &now
	if txRef != nil {
		p.GatewayPaymentID = txRef
	}

	if _, err := s.entitlements.Apply(tx, p, &plan); err != nil {
		return nil, err
	}
	p.Plan = &plan
	return &plan, nil
}

// setStatus writes a transition guarded on the status the caller read, so a
// concurrent writer that got there first turns this into a rejected
// transition instead of a lost update.
func (s *PaymentService) setStatus(tx *gorm.DB, p *models.Payment, to, reason string, extra map[string]interface{}) error {
	fields := map[string]interface{}{"status": to}
	if reason != "" {
		fields["status_reason"] = reason
	}
	for k, v := range extra {
		fields[k] = v
	}

	res := tx.Model(&models.Payment{}).Where("id = ? AND status = ?", p.ID, p.Status).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update payment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.rejectTransition(p, to)
	}

	metrics.ObserveTransition(p.Status, to, true)
	p.Status = to
	if reason != "" {
		p.StatusReason = reason
	}
	return nil
}

func (s *PaymentService) rejectTransition(p *models.Payment, to string) error {
	slog.Warn("rejected payment transition",
		"payment_id", p.ID.String(),
		"user_id", p.UserID.String(),
		"action", "transition",
		"from", p.Status,
		"to", to,
	)
	metrics.ObserveTransition(p.Status, to, false)
	return &TransitionError{PaymentID: p.ID, From: p.Status, To: to}
}

func (s *PaymentService) lockPayment(tx *gorm.DB, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := forUpdate(tx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err, ErrPaymentNotFound)
	}
	return &payment, nil
}

// withPaymentLocked runs fn with the owner's user row and the payment row
// locked, in that order.
func (s *PaymentService) withPaymentLocked(ctx context.Context, paymentID uuid.UUID, fn func(tx *gorm.DB, p *models.Payment) error) error {
	var owner models.Payment
	if err := s.db.WithContext(ctx).Select("id", "user_id").First(&owner, "id = ?", paymentID).Error; err != nil {
		return notFound(err, ErrPaymentNotFound)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.lockUser(tx, owner.UserID); err != nil {
			return err
		}
		p, err := s.lockPayment(tx, paymentID)
		if err != nil {
			return err
		}
		return fn(tx, p)
	})
}

func (s *PaymentService) afterCompleted(ctx context.Context, p *models.Payment, plan *models.Plan, how string) {
	metrics.EntitlementChanges.WithLabelValues("grant", how).Inc()
	slog.Info("payment completed",
		"payment_id", p.ID.String(),
		"user_id", p.UserID.String(),
		"action", how,
		"plan", plan.Name,
	)
	subject, body := paymentCompletedEmail(p, plan)
	s.mail.toUser(ctx, p.UserID, subject, body)
}

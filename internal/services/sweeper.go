package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/clock"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/metrics"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sweeper holds the two periodic reconciliations: revoking entitlements that
// ran past their end date, and failing payments that were never confirmed.
type Sweeper struct {
	db             *gorm.DB
	payments       *PaymentService
	entitlements   *EntitlementService
	mail           mailer
	clock          clock.Clock
	pendingTimeout time.Duration
}

func NewSweeper(db *gorm.DB, payments *PaymentService, entitlements *EntitlementService, notifier notify.Notifier, clk clock.Clock, pendingTimeout time.Duration) *Sweeper {
	return &Sweeper{
		db:             db,
		payments:       payments,
		entitlements:   entitlements,
		mail:           mailer{db: db, notifier: notifier},
		clock:          clk,
		pendingTimeout: pendingTimeout,
	}
}

// SweepExpired settles every active entitlement whose end date has passed:
// it is rebuilt from another completed payment that still grants access, or
// revoked when there is none.
// Each user is handled in its own transaction; one failure does not stop the
// rest, and all failures are returned joined.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var userIDs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Entitlement{}).
		Where("is_active = ? AND end_date IS NOT NULL AND end_date <= ?", true, now).
		Pluck("user_id", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("scan expired entitlements: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ent, change, err := s.entitlements.expire(ctx, userID)
		if err != nil {
			slog.Error("entitlement expiry failed", "user_id", userID.String(), "action", "expire", "error", err.Error())
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		if change == "" {
			continue
		}
		count++
		metrics.EntitlementChanges.WithLabelValues(change, "expired").Inc()
		if change == "revoke" {
			subject, body := entitlementExpiredEmail(*ent.EndDate)
			s.mail.toUser(ctx, userID, subject, body)
		}
	}

	if count > 0 {
		slog.Info("expired entitlements settled", "action", "sweep_expired", "count", count)
	}
	return count, errors.Join(errs...)
}

// SweepStalePending fails pending payments older than the pending timeout.
func (s *Sweeper) SweepStalePending(ctx context.Context) (int, error) {
	if s.pendingTimeout <= 0 {
		return 0, nil
	}
	cutoff := s.clock.Now().Add(-s.pendingTimeout)

	var ids []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", models.PaymentPending, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("scan stale payments: %w", err)
	}

	var (
		count int
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		changed, err := s.payments.failIfStale(ctx, id, "payment not confirmed in time")
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %s: %w", id, err))
			continue
		}
		if changed {
			count++
		}
	}

	if count > 0 {
		slog.Info("stale pending payments failed", "action", "sweep_pending", "count", count)
	}
	return count, errors.Join(errs...)
}

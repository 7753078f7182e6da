package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/astro-backend/internal/notify"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// mailer sends after-commit emails. Failures are logged and swallowed.
type mailer struct {
	db       *gorm.DB
	notifier notify.Notifier
}

func (m mailer) toUser(ctx context.Context, userID uuid.UUID, subject, body string) {
	if m.notifier == nil {
		return
	}
	if _, isNop := m.notifier.(notify.Nop); isNop {
		return
	}

	var user models.User
	if err := m.db.WithContext(ctx).Select("id", "email").First(&user, "id = ?", userID).Error; err != nil {
		slog.Warn("notification skipped, user lookup failed", "user_id", userID.String(), "error", err)
		return
	}
	if err := m.notifier.Send(ctx, user.Email, subject, body); err != nil {
		slog.Warn("notification failed", "user_id", userID.String(), "subject", subject, "error", err)
	}
}

func paymentCompletedEmail(p *models.Payment, plan *models.Plan) (string, string) {
	validity := "Your access does not expire."
	if p.EndDate != nil {
		validity = "Your access is valid until " + p.EndDate.Format("02 Jan 2006") + "."
	}
	return "Payment received",
		fmt.Sprintf("<p>Thank you! We received %s %s for the <b>%s</b> plan.</p><p>%s</p>",
			p.Amount.StringFixed(2), p.Currency, plan.Name, validity)
}

func paymentRefundedEmail(p *models.Payment) (string, string) {
	return "Refund processed",
		fmt.Sprintf("<p>Your payment of %s %s has been refunded.</p>", p.Amount.StringFixed(2), p.Currency)
}

func entitlementExpiredEmail(end time.Time) (string, string) {
	return "Your plan has expired",
		fmt.Sprintf("<p>Your plan ended on %s. Renew any time to keep your premium readings.</p>", end.Format("02 Jan 2006"))
}

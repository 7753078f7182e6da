package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrUserNotFound        = errors.New("user not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrPlanUnavailable     = errors.New("plan is not available for purchase")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrInvalidTransition   = errors.New("invalid payment status transition")
	ErrGatewayVerification = errors.New("payment verification failed")
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
	ErrDuplicatePending    = errors.New("a pending payment already exists for this plan")
	ErrNoActiveEntitlement = errors.New("no active entitlement")
)

// TransitionError is returned when a payment is asked to move along an edge
// that is not in the status graph. It matches ErrInvalidTransition.
type TransitionError struct {
	PaymentID uuid.UUID
	From      string
	To        string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("payment %s cannot move from %s to %s", e.PaymentID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks and already
// serializes writers, so the clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

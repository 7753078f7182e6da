// Package gateway wraps the external payment processor. The billing core
// only needs two calls from it: open an order for an amount, and check that a
// confirmation signature really came from the processor.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrOrderFailed = errors.New("gateway order creation failed")

// Order is the processor-side handle the client checks out against.
type Order struct {
	ID       string
	Amount   int64 // minor units (paise, cents)
	Currency string
}

type Client interface {
	// Name identifies the processor on stored payments.
	Name() string
	// KeyID is the public key the checkout widget needs.
	KeyID() string
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error)
	VerifySignature(orderID, transactionID, signature string) bool
}

// MinorUnits converts a major-unit amount to the integer the processor bills.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

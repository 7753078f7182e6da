package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Fake signs and verifies the same way Razorpay does (HMAC-SHA256 over
// "order_id|payment_id") without any network calls.
type Fake struct {
	Secret  string
	FailErr error

	mu     sync.Mutex
	orders int
}

func NewFake(secret string) *Fake {
	return &Fake{Secret: secret}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) KeyID() string { return "fake_key" }

func (f *Fake) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error) {
	if f.FailErr != nil {
		return nil, f.FailErr
	}
	f.mu.Lock()
	f.orders++
	n := f.orders
	f.mu.Unlock()
	return &Order{ID: fmt.Sprintf("order_fake_%d", n), Amount: MinorUnits(amount), Currency: currency}, nil
}

func (f *Fake) VerifySignature(orderID, transactionID, signature string) bool {
	expected := f.Sign(orderID, transactionID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (f *Fake) Sign(orderID, transactionID string) string {
	mac := hmac.New(sha256.New, []byte(f.Secret))
	mac.Write([]byte(orderID + "|" + transactionID))
	return hex.EncodeToString(mac.Sum(nil))
}

package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/shopspring/decimal"
)

type Razorpay struct {
	client *razorpay.Client
	keyID  string
	secret string
}

func NewRazorpay(keyID, secret string) *Razorpay {
	return &Razorpay{
		client: razorpay.NewClient(keyID, secret),
		keyID:  keyID,
		secret: secret,
	}
}

func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) KeyID() string { return r.keyID }

// CreateOrder opens an auto-captured order. The SDK has no context support,
// so ctx is only checked before the call.
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minor := MinorUnits(amount)
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":          minor,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderFailed, err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: response has no order id", ErrOrderFailed)
	}

	return &Order{ID: id, Amount: minor, Currency: currency}, nil
}

func (r *Razorpay) VerifySignature(orderID, transactionID, signature string) bool {
	if orderID == "" || transactionID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": transactionID,
	}, signature, r.secret)
}

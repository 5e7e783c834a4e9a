// Package payment wraps the two Razorpay calls the dashboard needs: creating
// an order for a rupee amount and checking the signature the checkout
// widget hands back.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deppfellow/autoprintx/internal/config"
	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const Currency = "INR"

var ErrInvalidAmount = errors.New("amount must be greater than zero")

// Order is the Razorpay order object, passed through to the browser as is.
type Order map[string]any

type Razorpay struct {
	client    *resty.Client
	keyID     string
	keySecret string
	baseURL   string
}

func NewRazorpay(cfg config.PaymentConfig) *Razorpay {
	client := resty.New().
		SetTimeout(20*time.Second).
		SetHeader("User-Agent", "autoprintx/1.0")

	return &Razorpay{
		client:    client,
		keyID:     cfg.RazorpayKeyID,
		keySecret: cfg.RazorpayKeySecret,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// ToPaise converts a rupee amount to integer paise, rounding half away from
// zero.
func ToPaise(rupees decimal.Decimal) int64 {
	return rupees.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateOrder opens an auto-captured INR order for amount rupees.
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal) (Order, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var (
		order   Order
		failure struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
	)

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.keyID, r.keySecret).
		SetBody(map[string]any{
			"amount":          ToPaise(amount),
			"currency":        Currency,
			"payment_capture": 1,
		}).
		SetResult(&order).
		SetError(&failure).
		Post(r.baseURL + "/v1/orders")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "razorpay create order")
	}
	if resp.IsError() {
		return nil, fmt.Errorf("razorpay create order: status %d: %s", resp.StatusCode(), failure.Error.Description)
	}

	return order, nil
}

// VerifySignature checks signature == hex(HMAC_SHA256(orderID|paymentID)).
func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}

	expected := Sign(r.keySecret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the checkout signature for an order/payment pair.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

package service

import (
	"context"
	"errors"

	"github.com/deppfellow/autoprintx/internal/errs"
	"github.com/deppfellow/autoprintx/internal/lib/payment"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway is the payment provider. *payment.Razorpay implements it.
type Gateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal) (payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type PaymentService struct {
	server  *server.Server
	gateway Gateway
}

func NewPaymentService(s *server.Server, gateway Gateway) *PaymentService {
	return &PaymentService{
		server:  s,
		gateway: gateway,
	}
}

// CreateOrder opens a gateway order for amount rupees on behalf of the
// owner. The gateway's order object is returned untouched.
func (p *PaymentService) CreateOrder(ctx context.Context, ownerID uuid.UUID, amount decimal.Decimal) (payment.Order, error) {
	order, err := p.gateway.CreateOrder(ctx, amount)
	if errors.Is(err, payment.ErrInvalidAmount) {
		return nil, errs.NewBadRequestError("Amount must be greater than zero.", true, nil,
			[]errs.FieldError{{Field: "amount", Error: err.Error()}}, nil)
	}
	if err != nil {
		p.server.Logger.Error().Err(err).Str("user_id", ownerID.String()).Msg("failed to create payment order")
		return nil, err
	}

	p.server.Logger.Info().
		Str("user_id", ownerID.String()).
		Str("amount", amount.StringFixed(2)).
		Msg("payment order created")
	return order, nil
}

// VerifyPayment reports whether the checkout signature is genuine.
func (p *PaymentService) VerifyPayment(ownerID uuid.UUID, orderID, paymentID, signature string) bool {
	ok := p.gateway.VerifySignature(orderID, paymentID, signature)
	p.server.Logger.Info().
		Str("user_id", ownerID.String()).
		Str("razorpay_order_id", orderID).
		Bool("verified", ok).
		Msg("payment verification")
	return ok
}

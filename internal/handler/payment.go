package handler

import (
	"net/http"

	"github.com/deppfellow/autoprintx/internal/lib/payment"
	"github.com/deppfellow/autoprintx/internal/middleware"
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/deppfellow/autoprintx/internal/validation"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type PaymentHandler struct {
	Handler
	payments *service.PaymentService
}

func NewPaymentHandler(s *server.Server, payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		Handler:  NewHandler(s),
		payments: payments,
	}
}

type CreatePaymentOrderRequest struct {
	// Amount is in rupees.
	Amount decimal.Decimal `json:"amount"`
}

func (r *CreatePaymentOrderRequest) Validate() error { return nil }

type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
}

func (r *VerifyPaymentRequest) Validate() error { return validation.Struct(r) }

type PaymentStatusResponse struct {
	Status string `json:"status"`
}

func (h *PaymentHandler) CreateOrder(c echo.Context, req *CreatePaymentOrderRequest) (payment.Order, error) {
	return h.payments.CreateOrder(c.Request().Context(), middleware.GetUserID(c), req.Amount)
}

// VerifyPayment answers 400 with a status body when the signature does not
// match, rather than going through the error handler.
func (h *PaymentHandler) VerifyPayment(c echo.Context, req *VerifyPaymentRequest) (*PaymentStatusResponse, error) {
	if !h.payments.VerifyPayment(middleware.GetUserID(c), req.OrderID, req.PaymentID, req.Signature) {
		return nil, c.JSON(http.StatusBadRequest, PaymentStatusResponse{Status: "Payment Verification Failed"})
	}
	return &PaymentStatusResponse{Status: "Payment Verified"}, nil
}

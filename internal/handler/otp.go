package handler

import (
	"github.com/deppfellow/autoprintx/internal/server"
	"github.com/deppfellow/autoprintx/internal/service"
	"github.com/deppfellow/autoprintx/internal/validation"
	"github.com/labstack/echo/v4"
)

type OTPHandler struct {
	Handler
	otp *service.OTPService
}

func NewOTPHandler(s *server.Server, otp *service.OTPService) *OTPHandler {
	return &OTPHandler{
		Handler: NewHandler(s),
		otp:     otp,
	}
}

type SendOTPRequest struct {
	EmailOrPhone string `json:"email_or_phone" validate:"required,max=255"`
}

func (r *SendOTPRequest) Validate() error { return validation.Struct(r) }

type VerifyOTPRequest struct {
	EmailOrPhone string `json:"email_or_phone" validate:"required,max=255"`
	OTP          string `json:"otp" validate:"required,len=4,numeric"`
}

func (r *VerifyOTPRequest) Validate() error { return validation.Struct(r) }

type ResetPasswordRequest struct {
	EmailOrPhone string `json:"email_or_phone" validate:"required,max=255"`
	NewPassword  string `json:"new_password" validate:"required,min=8"`
}

func (r *ResetPasswordRequest) Validate() error { return validation.Struct(r) }

func (h *OTPHandler) Send(c echo.Context, req *SendOTPRequest) (*SuccessResponse, error) {
	if err := h.otp.Send(c.Request().Context(), req.EmailOrPhone); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true, Message: "OTP sent successfully."}, nil
}

func (h *OTPHandler) Verify(c echo.Context, req *VerifyOTPRequest) (*SuccessResponse, error) {
	if err := h.otp.Verify(c.Request().Context(), req.EmailOrPhone, req.OTP); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true, Message: "OTP verified successfully."}, nil
}

func (h *OTPHandler) ResetPassword(c echo.Context, req *ResetPasswordRequest) (*SuccessResponse, error) {
	if err := h.otp.ResetPassword(c.Request().Context(), req.EmailOrPhone, req.NewPassword); err != nil {
		return nil, err
	}
	return &SuccessResponse{Success: true, Message: "Password reset successfully."}, nil
}

package service

import (
	"github.com/deppfellow/autoprintx/internal/lib/job"
	"github.com/deppfellow/autoprintx/internal/lib/payment"
	"github.com/deppfellow/autoprintx/internal/repository"
	"github.com/deppfellow/autoprintx/internal/server"
)

type Services struct {
	Auth      *AuthService
	OTP       *OTPService
	Order     *OrderService
	Dashboard *DashboardService
	Settings  *SettingsService
	Payment   *PaymentService
	Job       *job.JobService
}

func NewService(s *server.Server, repos *repository.Repositories) (*Services, error) {
	return &Services{
		Job:       s.Job,
		Auth:      NewAuthService(s, repos.Owner),
		OTP:       NewOTPService(s, repos.Owner, repos.OTP, s.Job),
		Order:     NewOrderService(s, repos.Owner, repos.Order),
		Dashboard: NewDashboardService(s, repos.Owner, repos.Order),
		Settings:  NewSettingsService(s, repos.Owner),
		Payment:   NewPaymentService(s, payment.NewRazorpay(s.Config.Payment)),
	}, nil
}

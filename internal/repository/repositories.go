package repository

import (
	"github.com/deppfellow/autoprintx/internal/server"
)

// Repositories is a container for all repository instances, so services can
// be wired from a single value.
type Repositories struct {
	Owner *OwnerRepository
	Order *OrderRepository
	OTP   *OTPRepository
}

// NewRepositories builds every repository on the server's shared pool.
func NewRepositories(s *server.Server) *Repositories {
	pool := s.DB.Pool
	return &Repositories{
		Owner: NewOwnerRepository(pool),
		Order: NewOrderRepository(pool),
		OTP:   NewOTPRepository(pool),
	}
}

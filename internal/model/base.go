// Package model holds the persistent entities and the parameter/result
// shapes that travel between the repository and service layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the columns every table shares.
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

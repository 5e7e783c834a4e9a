package model

import (
	"strings"

	"github.com/google/uuid"
)

// Defaults applied by the owners table when a shop is first registered.
const (
	DefaultShopName    = "AutoPrintX Shop"
	DefaultOwnerField  = "Unknown"
	DefaultNationality = "IN"
)

// Owner is a shop-owner account. Customers reach the shop through UniqueURL.
type Owner struct {
	Base
	Username         string  `json:"username" db:"username"`
	Email            string  `json:"email" db:"email"`
	PasswordHash     string  `json:"-" db:"password_hash"`
	UniqueURL        string  `json:"unique_url" db:"unique_url"`
	ShopName         string  `json:"shop_name" db:"shop_name"`
	OwnerFullname    string  `json:"owner_fullname" db:"owner_fullname"`
	OwnerPhoneNumber string  `json:"owner_phone_number" db:"owner_phone_number"`
	OwnerShopAddress string  `json:"owner_shop_address" db:"owner_shop_address"`
	OwnerNationality string  `json:"owner_nationality" db:"owner_nationality"`
	OwnerShopImage   *string `json:"owner_shop_image" db:"owner_shop_image"`
	InfoModified     bool    `json:"info_modified" db:"info_modified"`
}

// IsRealPhone reports whether phone can identify an owner: it is neither
// blank nor the registration placeholder.
func IsRealPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	return phone != "" && !strings.EqualFold(phone, DefaultOwnerField)
}

// ShopImage returns the stored image URL or "".
func (o *Owner) ShopImage() string {
	if o.OwnerShopImage == nil {
		return ""
	}
	return *o.OwnerShopImage
}

// NewOwner is the insert payload for a registration.
type NewOwner struct {
	Username     string
	Email        string
	PasswordHash string
	UniqueURL    string
}

// OwnerUpdate lists the settings columns that may change. Nil fields are
// left untouched. Every update marks the owner as info_modified.
type OwnerUpdate struct {
	ID               uuid.UUID
	ShopName         *string
	Email            *string
	OwnerFullname    *string
	OwnerPhoneNumber *string
	OwnerShopAddress *string
	OwnerShopImage   *string
}

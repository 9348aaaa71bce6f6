package models

import (
	"time"

	"github.com/google/uuid"
)

// Address is a user's shipping address. Orders copy the fields they need at
// creation time, so later edits never rewrite order history.
type Address struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	City         string    `gorm:"column:city;not null"`
	AddressLine1 string    `gorm:"column:address_line_1;not null"`
	AddressLine2 *string   `gorm:"column:address_line_2"`
	PostalCode   string    `gorm:"column:postal_code;not null"`
	IsDefault    bool      `gorm:"column:is_default;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

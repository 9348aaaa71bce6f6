package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// StockReservation is one product hold within one order's checkout attempt.
// StripeSessionID stays null between the ledger decrement and session
// binding; rows in that window belong to exactly one in-flight checkout.
type StockReservation struct {
	ID              uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID         uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       uuid.UUID               `gorm:"column:product_id;type:uuid;not null;constraint:OnDelete:RESTRICT"`
	UserID          uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	Quantity        int                     `gorm:"column:quantity;not null"`
	StripeSessionID *string                 `gorm:"column:stripe_session_id;index"`
	Status          enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'active';index"`
	ExpiresAt       time.Time               `gorm:"column:expires_at;not null;index"`
	CreatedAt       time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

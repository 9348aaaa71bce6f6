package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// Order is a checkout attempt's anchor. Line items and the shipping address
// are snapshotted at creation time and never re-derived from the catalog.
// OrderKey is the correlation key handed to the payment gateway as the
// client reference id.
type Order struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	AddressID uuid.UUID `gorm:"column:address_id;type:uuid;not null"`

	ShippingAddressLine1 string `gorm:"column:shipping_address_line1;not null"`
	ShippingCity         string `gorm:"column:shipping_city;not null"`
	ShippingPostalCode   string `gorm:"column:shipping_postal_code;not null"`
	RecipientName        string `gorm:"column:recipient_name;not null"`

	TotalCents int               `gorm:"column:total_cents;not null"`
	OrderKey   string            `gorm:"column:order_key;not null;uniqueIndex"`
	Status     enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`

	Items        []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Reservations []StockReservation `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots price and quantity for one product within an order.
// The product row is referenced, never owned: RESTRICT keeps it deletable
// only once no order history points at it.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;constraint:OnDelete:RESTRICT"`
	Name       string    `gorm:"column:name;not null"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	Quantity   int       `gorm:"column:quantity;not null;default:1"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Product carries the two stock counters the reservation lifecycle moves.
//
// QuantityAvailable is stock not held by any active reservation: decremented
// on reserve, incremented on release, untouched on consume.
// QuantityOnHand is physical stock: decremented only on confirmed payment.
// Both counters must stay >= 0; on_hand may exceed or trail available while
// reservations are in flight.
type Product struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	Description       *string   `gorm:"column:description"`
	PriceCents        int       `gorm:"column:price_cents;not null"`
	QuantityAvailable int       `gorm:"column:quantity_available;not null;default:0"`
	QuantityOnHand    int       `gorm:"column:quantity_on_hand;not null;default:0"`
	IsActive          bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

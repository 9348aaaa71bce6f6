package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// Transaction records one checkout attempt against the gateway.
// ReferenceID is the gateway's session id and the idempotency key for
// webhook processing. RawResponse keeps the gateway payload for audit.
type Transaction struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	ReferenceID string                  `gorm:"column:reference_id;not null;uniqueIndex"`
	Amount      decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RawResponse json.RawMessage         `gorm:"column:raw_response"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

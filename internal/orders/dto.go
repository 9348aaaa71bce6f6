package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
)

// CreateOrderItemInput is one requested line in a new order.
type CreateOrderItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CreateOrderInput carries everything needed to snapshot a new order.
type CreateOrderInput struct {
	AddressID     uuid.UUID              `json:"address_id" validate:"required"`
	RecipientName *string                `json:"recipient_name,omitempty"`
	Items         []CreateOrderItemInput `json:"items" validate:"required,min=1,dive"`
}

// OrderItemResponse is the wire shape of a snapshotted line item.
type OrderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	ProductID  uuid.UUID `json:"product_id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	Quantity   int       `json:"quantity"`
}

// OrderResponse is the wire shape of an order.
type OrderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderKey      string              `json:"order_key"`
	Status        enums.OrderStatus   `json:"status"`
	RecipientName string              `json:"recipient_name"`
	AddressLine1  string              `json:"address_line1"`
	City          string              `json:"city"`
	PostalCode    string              `json:"postal_code"`
	TotalCents    int                 `json:"total_cents"`
	Items         []OrderItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ToResponse maps a persisted order onto its wire shape.
func ToResponse(order *models.Order) OrderResponse {
	resp := OrderResponse{
		ID:            order.ID,
		OrderKey:      order.OrderKey,
		Status:        order.Status,
		RecipientName: order.RecipientName,
		AddressLine1:  order.ShippingAddressLine1,
		City:          order.ShippingCity,
		PostalCode:    order.ShippingPostalCode,
		TotalCents:    order.TotalCents,
		CreatedAt:     order.CreatedAt,
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:         item.ID,
			ProductID:  item.ProductID,
			Name:       item.Name,
			PriceCents: item.PriceCents,
			Quantity:   item.Quantity,
		})
	}
	return resp
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// Order represents a customer order as consumed from the order-management
// surface. Status and the settled flag are mutated only through the order
// state machine and the settlement engine.
type Order struct {
	ID               uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID     uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null"`
	CustomerID       uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	CourierID        *uuid.UUID        `gorm:"column:courier_id;type:uuid"`
	Status           enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	SubtotalCents    int64             `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents int64             `gorm:"column:delivery_fee_cents;not null;default:0"`
	TotalCents       int64             `gorm:"column:total_cents;not null"`
	Settled          bool              `gorm:"column:settled;not null;default:false"`
	SettledAt        *time.Time        `gorm:"column:settled_at"`
	DeliveredAt      *time.Time        `gorm:"column:delivered_at"`
	CancelledAt      *time.Time        `gorm:"column:cancelled_at"`
	Items            []OrderLineItem   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// ItemCount sums the quantities across line items.
func (o Order) ItemCount() int64 {
	var count int64
	for _, item := range o.Items {
		count += int64(item.Quantity)
	}
	return count
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem is one priced menu item on an order.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// LineTotalCents returns unit price times quantity.
func (i OrderLineItem) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

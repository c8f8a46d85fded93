package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// TrustEvent is the append-only history of point-affecting events for one
// restaurant, including clamped applications whose effective delta is zero.
type TrustEvent struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID  uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Signal        enums.TrustSignal `gorm:"column:signal;type:trust_signal;not null"`
	Delta         int64             `gorm:"column:delta;not null"`
	BalanceBefore int64             `gorm:"column:balance_before;not null"`
	BalanceAfter  int64             `gorm:"column:balance_after;not null"`
	Suspended     bool              `gorm:"column:suspended;not null"`
	OrderID       *uuid.UUID        `gorm:"column:order_id;type:uuid"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// TrustRecord is the per-restaurant trust-point counter. The suspended flag is
// sticky: it flips true on a downward threshold crossing and is only cleared
// by an explicit administrative override.
type TrustRecord struct {
	RestaurantID    uuid.UUID             `gorm:"column:restaurant_id;type:uuid;primaryKey"`
	PointBalance    int64                 `gorm:"column:point_balance;not null"`
	WarningCount    int                   `gorm:"column:warning_count;not null;default:0"`
	Suspended       bool                  `gorm:"column:suspended;not null;default:false"`
	SuspendedAt     *time.Time            `gorm:"column:suspended_at"`
	AttributionKind enums.AttributionKind `gorm:"column:attribution_kind;type:attribution_kind;not null;default:'none'"`
	ReferrerID      *uuid.UUID            `gorm:"column:referrer_id;type:uuid"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

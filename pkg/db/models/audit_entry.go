package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// AuditEntry is an append-only record of a settlement, trust adjustment, or
// administrative override. Payload carries the structured before/after detail
// needed to replay ledger and trust state for reconciliation.
type AuditEntry struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Action     enums.AuditAction     `gorm:"column:action;type:audit_action;not null"`
	TargetType enums.AuditTargetType `gorm:"column:target_type;type:audit_target_type;not null"`
	TargetID   uuid.UUID             `gorm:"column:target_id;type:uuid;not null"`
	ActorID    uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole  enums.ActorRole       `gorm:"column:actor_role;type:actor_role;not null"`
	Detail     string                `gorm:"column:detail;not null"`
	Payload    json.RawMessage       `gorm:"column:payload;type:jsonb"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// LedgerAccount is the per-party running balance. One row exists per
// settleable party; rows are created lazily on first posting.
// (party_kind, party_id) is unique.
type LedgerAccount struct {
	ID                     uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartyKind              enums.LedgerPartyKind `gorm:"column:party_kind;type:ledger_party_kind;not null;uniqueIndex:idx_ledger_accounts_party"`
	PartyID                uuid.UUID             `gorm:"column:party_id;type:uuid;not null;uniqueIndex:idx_ledger_accounts_party"`
	BalanceCents           int64                 `gorm:"column:balance_cents;not null;default:0"`
	LifetimeEarnedCents    int64                 `gorm:"column:lifetime_earned_cents;not null;default:0"`
	LifetimeWithdrawnCents int64                 `gorm:"column:lifetime_withdrawn_cents;not null;default:0"`
	CreatedAt              time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

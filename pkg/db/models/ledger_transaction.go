package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// LedgerTransaction is an immutable signed posting against a ledger account.
// The partial unique index on (account_id, order_id, kind) is the settlement
// idempotency guard; manual adjustments carry no order id and bypass it.
type LedgerTransaction struct {
	ID          uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID   uuid.UUID                   `gorm:"column:account_id;type:uuid;not null"`
	OrderID     *uuid.UUID                  `gorm:"column:order_id;type:uuid"`
	Kind        enums.LedgerTransactionKind `gorm:"column:kind;type:ledger_transaction_kind;not null"`
	AmountCents int64                       `gorm:"column:amount_cents;not null"`
	Note        *string                     `gorm:"column:note"`
	CreatedAt   time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

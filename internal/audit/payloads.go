package audit

import (
	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// PostingPayload is one ledger posting inside a settlement audit entry.
type PostingPayload struct {
	AccountID   uuid.UUID                   `json:"account_id"`
	PartyKind   enums.LedgerPartyKind       `json:"party_kind"`
	PartyID     uuid.UUID                   `json:"party_id"`
	Kind        enums.LedgerTransactionKind `json:"kind"`
	AmountCents int64                       `json:"amount_cents"`
}

// SettlementPayload captures the full split an order settled with. The
// postings are what Replay applies to reconstruct ledger balances.
type SettlementPayload struct {
	OrderID        uuid.UUID        `json:"order_id"`
	Attribution    enums.AttributionKind `json:"attribution"`
	ItemCount      int64            `json:"item_count"`
	PlatformCents  int64            `json:"platform_cents"`
	ReferrerCents  int64            `json:"referrer_cents"`
	CourierCents   int64            `json:"courier_cents"`
	CourierClamped bool             `json:"courier_clamped"`
	Postings       []PostingPayload `json:"postings"`
}

// AdjustmentPayload records a manual ledger adjustment.
type AdjustmentPayload struct {
	AccountID     uuid.UUID `json:"account_id"`
	AmountCents   int64     `json:"amount_cents"`
	BalanceBefore int64     `json:"balance_before"`
	BalanceAfter  int64     `json:"balance_after"`
	Reason        string    `json:"reason"`
}

// TrustSignalPayload records a trust point application, including the clamped
// outcome so replay needs no knowledge of the configured deltas.
type TrustSignalPayload struct {
	Signal        enums.TrustSignal `json:"signal"`
	Delta         int64             `json:"delta"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	WarningCount  int               `json:"warning_count"`
	Suspended     bool              `json:"suspended"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
}

// SuspensionClearedPayload records an explicit admin unsuspension.
type SuspensionClearedPayload struct {
	BalanceAtClear int64  `json:"balance_at_clear"`
	Reason         string `json:"reason"`
}

// TransitionPayload records an order state change.
type TransitionPayload struct {
	From enums.OrderStatus `json:"from"`
	To   enums.OrderStatus `json:"to"`
}

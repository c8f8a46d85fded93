package enums

import "fmt"

// LedgerTransactionKind maps to the ledger_transaction_kind enum in Postgres.
// Together with (account_id, order_id) it forms the posting idempotency key.
type LedgerTransactionKind string

const (
	LedgerTransactionKindPlatformFee        LedgerTransactionKind = "platform_fee"
	LedgerTransactionKindReferrerCommission LedgerTransactionKind = "referrer_commission"
	LedgerTransactionKindCourierFee         LedgerTransactionKind = "courier_fee"
	LedgerTransactionKindManualAdjustment   LedgerTransactionKind = "manual_adjustment"
)

var validLedgerTransactionKinds = []LedgerTransactionKind{
	LedgerTransactionKindPlatformFee,
	LedgerTransactionKindReferrerCommission,
	LedgerTransactionKindCourierFee,
	LedgerTransactionKindManualAdjustment,
}

// IsValid reports whether the value matches the canonical transaction kind enum.
func (k LedgerTransactionKind) IsValid() bool {
	for _, candidate := range validLedgerTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseLedgerTransactionKind converts raw input into LedgerTransactionKind.
func ParseLedgerTransactionKind(value string) (LedgerTransactionKind, error) {
	for _, candidate := range validLedgerTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger transaction kind %q", value)
}

package enums

import "fmt"

// AuditAction maps to the audit_action enum in Postgres.
type AuditAction string

const (
	AuditActionOrderTransitioned  AuditAction = "order_transitioned"
	AuditActionOrderSettled       AuditAction = "order_settled"
	AuditActionTrustSignalApplied AuditAction = "trust_signal_applied"
	AuditActionSuspensionCleared  AuditAction = "suspension_cleared"
	AuditActionLedgerAdjusted     AuditAction = "ledger_adjusted"
)

var validAuditActions = []AuditAction{
	AuditActionOrderTransitioned,
	AuditActionOrderSettled,
	AuditActionTrustSignalApplied,
	AuditActionSuspensionCleared,
	AuditActionLedgerAdjusted,
}

// IsValid reports whether the value is a known AuditAction.
func (a AuditAction) IsValid() bool {
	for _, candidate := range validAuditActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuditAction converts raw input into an AuditAction.
func ParseAuditAction(value string) (AuditAction, error) {
	for _, candidate := range validAuditActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit action %q", value)
}

// AuditTargetType identifies the entity an audit entry refers to.
type AuditTargetType string

const (
	AuditTargetOrder         AuditTargetType = "order"
	AuditTargetRestaurant    AuditTargetType = "restaurant"
	AuditTargetLedgerAccount AuditTargetType = "ledger_account"
)

var validAuditTargetTypes = []AuditTargetType{
	AuditTargetOrder,
	AuditTargetRestaurant,
	AuditTargetLedgerAccount,
}

// IsValid reports whether the value is a known AuditTargetType.
func (t AuditTargetType) IsValid() bool {
	for _, candidate := range validAuditTargetTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseAuditTargetType converts raw input into an AuditTargetType.
func ParseAuditTargetType(value string) (AuditTargetType, error) {
	for _, candidate := range validAuditTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid audit target type %q", value)
}

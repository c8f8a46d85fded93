package enums

import "fmt"

// LedgerPartyKind classifies the owner of a ledger account.
type LedgerPartyKind string

const (
	LedgerPartyKindPlatform   LedgerPartyKind = "platform"
	LedgerPartyKindReferrer   LedgerPartyKind = "referrer"
	LedgerPartyKindCourier    LedgerPartyKind = "courier"
	LedgerPartyKindRestaurant LedgerPartyKind = "restaurant"
)

var validLedgerPartyKinds = []LedgerPartyKind{
	LedgerPartyKindPlatform,
	LedgerPartyKindReferrer,
	LedgerPartyKindCourier,
	LedgerPartyKindRestaurant,
}

// IsValid reports whether the value is a known LedgerPartyKind.
func (p LedgerPartyKind) IsValid() bool {
	for _, candidate := range validLedgerPartyKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseLedgerPartyKind converts raw input into a LedgerPartyKind.
func ParseLedgerPartyKind(value string) (LedgerPartyKind, error) {
	for _, candidate := range validLedgerPartyKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger party kind %q", value)
}

package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregateRestaurant    OutboxAggregateType = "restaurant"
	AggregateLedgerAccount OutboxAggregateType = "ledger_account"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateRestaurant,
	AggregateLedgerAccount,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderStateChanged    OutboxEventType = "order_state_changed"
	EventOrderSettled         OutboxEventType = "order_settled"
	EventTrustSignalApplied   OutboxEventType = "trust_signal_applied"
	EventRestaurantSuspended  OutboxEventType = "restaurant_suspended"
	EventSuspensionCleared    OutboxEventType = "suspension_cleared"
	EventLedgerAdjusted       OutboxEventType = "ledger_adjusted"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderStateChanged,
	EventOrderSettled,
	EventTrustSignalApplied,
	EventRestaurantSuspended,
	EventSuspensionCleared,
	EventLedgerAdjusted,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

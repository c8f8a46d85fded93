package orders

import (
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// allowedTransitions is the single source of truth for the order lifecycle.
// delivered and cancelled are terminal; cancellation is only open to a
// restaurant before food is ready.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusAccepted, enums.OrderStatusCancelled},
	enums.OrderStatusAccepted:       {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusReady:          {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      nil,
	enums.OrderStatusCancelled:      nil,
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal next states from the given status.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	return allowedTransitions[from]
}

package enums

import "fmt"

// TrustSignal identifies the cause of a trust-point adjustment.
type TrustSignal string

const (
	TrustSignalOrderDelivered              TrustSignal = "order_delivered"
	TrustSignalOrderCancelledByRestaurant  TrustSignal = "order_cancelled_by_restaurant"
	TrustSignalLateDelivery                TrustSignal = "late_delivery"
	TrustSignalCustomerComplaint           TrustSignal = "customer_complaint"
	TrustSignalManualAdjustment            TrustSignal = "manual_adjustment"
)

var validTrustSignals = []TrustSignal{
	TrustSignalOrderDelivered,
	TrustSignalOrderCancelledByRestaurant,
	TrustSignalLateDelivery,
	TrustSignalCustomerComplaint,
	TrustSignalManualAdjustment,
}

// String implements fmt.Stringer.
func (t TrustSignal) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TrustSignal.
func (t TrustSignal) IsValid() bool {
	for _, candidate := range validTrustSignals {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTrustSignal converts raw input into a TrustSignal.
func ParseTrustSignal(value string) (TrustSignal, error) {
	for _, candidate := range validTrustSignals {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trust signal %q", value)
}

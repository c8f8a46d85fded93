package enums

// TrustStatus is the derived health of a restaurant's trust record. Only the
// suspended flag is stored; warned is computed against the warning threshold.
type TrustStatus string

const (
	TrustStatusActive    TrustStatus = "active"
	TrustStatusWarned    TrustStatus = "warned"
	TrustStatusSuspended TrustStatus = "suspended"
)

// String implements fmt.Stringer.
func (t TrustStatus) String() string {
	return string(t)
}

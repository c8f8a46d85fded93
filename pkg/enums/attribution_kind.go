package enums

import "fmt"

// AttributionKind identifies who is credited with bringing a restaurant onto
// the platform, which in turn decides the commission split.
type AttributionKind string

const (
	AttributionKindNone            AttributionKind = "none"
	AttributionKindSupervisorAdmin AttributionKind = "supervisor_admin"
	AttributionKindPlatformDirect  AttributionKind = "platform_direct"
)

var validAttributionKinds = []AttributionKind{
	AttributionKindNone,
	AttributionKindSupervisorAdmin,
	AttributionKindPlatformDirect,
}

// IsValid reports whether the value is a known AttributionKind.
func (a AttributionKind) IsValid() bool {
	for _, candidate := range validAttributionKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAttributionKind converts raw input into an AttributionKind.
func ParseAttributionKind(value string) (AttributionKind, error) {
	for _, candidate := range validAttributionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid attribution kind %q", value)
}

package types

import (
	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// Attribution records who is credited with referring a restaurant onto the
// platform. ReferrerID is set only for supervisor/admin attributions.
type Attribution struct {
	Kind       enums.AttributionKind `json:"kind"`
	ReferrerID *uuid.UUID            `json:"referrer_id,omitempty"`
}

// Validate checks internal consistency of the attribution.
func (a Attribution) Validate() error {
	if !a.Kind.IsValid() {
		return errInvalidAttribution(string(a.Kind))
	}
	if a.Kind == enums.AttributionKindSupervisorAdmin && a.ReferrerID == nil {
		return errReferrerRequired
	}
	if a.Kind != enums.AttributionKindSupervisorAdmin && a.ReferrerID != nil {
		return errReferrerUnexpected
	}
	return nil
}

// HasReferrer reports whether the attribution credits an external referrer.
func (a Attribution) HasReferrer() bool {
	return a.Kind == enums.AttributionKindSupervisorAdmin && a.ReferrerID != nil
}

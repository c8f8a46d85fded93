package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/api/responses"
	"github.com/moodegoozy/sofra-core/api/validators"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/types"
)

type createTrustRecordRequest struct {
	AttributionKind string  `json:"attribution_kind" validate:"required"`
	ReferrerID      *string `json:"referrer_id,omitempty" validate:"omitempty,uuid"`
}

// CreateTrustRecord seeds the trust record for a newly onboarded restaurant.
func CreateTrustRecord(svc trust.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := parseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createTrustRecordRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseAttributionKind(req.AttributionKind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attribution kind"))
			return
		}
		attribution := types.Attribution{Kind: kind}
		if req.ReferrerID != nil {
			parsed, parseErr := uuid.Parse(*req.ReferrerID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid referrer id"))
				return
			}
			attribution.ReferrerID = &parsed
		}

		ctx := logg.WithRestaurantID(r.Context(), restaurantID.String())
		record, err := svc.CreateRecord(ctx, restaurantID, attribution)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newTrustRecordResponse(record))
	}
}

type applyTrustSignalRequest struct {
	Signal    string   `json:"signal" validate:"required"`
	Magnitude int64    `json:"magnitude,omitempty"`
	OrderID   *string  `json:"order_id,omitempty" validate:"omitempty,uuid"`
	Actor     actorRef `json:"actor" validate:"required"`
}

// ApplyTrustSignal applies one trust signal to a restaurant's record.
func ApplyTrustSignal(svc trust.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := parseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req applyTrustSignalRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signal, err := enums.ParseTrustSignal(req.Signal)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid trust signal"))
			return
		}
		actor, err := req.Actor.toActor()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var orderID *uuid.UUID
		if req.OrderID != nil {
			parsed, parseErr := uuid.Parse(*req.OrderID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid order id"))
				return
			}
			orderID = &parsed
		}

		ctx := logg.WithRestaurantID(r.Context(), restaurantID.String())
		record, err := svc.ApplySignal(ctx, trust.ApplySignalInput{
			RestaurantID: restaurantID,
			Signal:       signal,
			Magnitude:    req.Magnitude,
			OrderID:      orderID,
			Actor:        actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTrustRecordResponse(record))
	}
}

// GetTrustStatus returns the record plus the derived active/warned/suspended
// status.
func GetTrustStatus(svc trust.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := parseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.GetStatus(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTrustStatusResponse(status))
	}
}

// ListTrustEvents returns the signal history for a restaurant.
func ListTrustEvents(svc trust.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := parseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		events, err := svc.ListEvents(r.Context(), restaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTrustEventResponses(events))
	}
}

type clearSuspensionRequest struct {
	Reason string   `json:"reason" validate:"required"`
	Actor  actorRef `json:"actor" validate:"required"`
}

// ClearSuspension lifts a sticky suspension. Point recovery never does this
// on its own; only this explicit override can.
func ClearSuspension(svc trust.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := parseUUIDParam(r, "restaurantId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req clearSuspensionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := req.Actor.toActor()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithRestaurantID(r.Context(), restaurantID.String())
		record, err := svc.ClearSuspension(ctx, restaurantID, actor, validators.SanitizeString(req.Reason, 500))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTrustRecordResponse(record))
	}
}

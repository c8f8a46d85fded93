package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/api/responses"
	"github.com/moodegoozy/sofra-core/api/validators"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/settlement"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
)

type createOrderRequest struct {
	RestaurantID     string                   `json:"restaurant_id" validate:"required,uuid"`
	CustomerID       string                   `json:"customer_id" validate:"required,uuid"`
	DeliveryFeeCents int64                    `json:"delivery_fee_cents" validate:"min=0"`
	Items            []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	Name           string `json:"name" validate:"required"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"required,min=1"`
	Quantity       int    `json:"quantity" validate:"required,min=1"`
}

// CreateOrder opens a pending order with validated line items and totals.
func CreateOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		restaurantID, err := uuid.Parse(req.RestaurantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
			return
		}
		customerID, err := uuid.Parse(req.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer id"))
			return
		}

		items := make([]orders.LineItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, orders.LineItemInput{
				Name:           validators.SanitizeString(item.Name, 200),
				UnitPriceCents: item.UnitPriceCents,
				Quantity:       item.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), orders.CreateOrderInput{
			RestaurantID:     restaurantID,
			CustomerID:       customerID,
			DeliveryFeeCents: req.DeliveryFeeCents,
			Items:            items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// GetOrder returns one order with its line items.
func GetOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type transitionOrderRequest struct {
	To        string   `json:"to" validate:"required"`
	CourierID *string  `json:"courier_id,omitempty" validate:"omitempty,uuid"`
	Actor     actorRef `json:"actor" validate:"required"`
}

// TransitionOrder moves an order one lifecycle step under the guarded state
// machine.
func TransitionOrder(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transitionOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		to, err := enums.ParseOrderStatus(req.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}
		actor, err := req.Actor.toActor()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var courierID *uuid.UUID
		if req.CourierID != nil {
			parsed, parseErr := uuid.Parse(*req.CourierID)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid courier id"))
				return
			}
			courierID = &parsed
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		order, err := svc.Transition(ctx, orders.TransitionInput{
			OrderID:   orderID,
			To:        to,
			CourierID: courierID,
			Actor:     actor,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

type settleOrderRequest struct {
	Actor actorRef `json:"actor" validate:"required"`
}

// SettleOrder runs the settlement engine for a delivered order. Replays
// return the recorded outcome without new postings.
func SettleOrder(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req settleOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := req.Actor.toActor()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID.String())
		result, err := svc.Settle(ctx, orderID, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettlementResponse(result))
	}
}

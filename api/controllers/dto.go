package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/moodegoozy/sofra-core/internal/commission"
	"github.com/moodegoozy/sofra-core/internal/settlement"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

type lineItemResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	Quantity       int       `json:"quantity"`
	LineTotalCents int64     `json:"line_total_cents"`
}

type orderResponse struct {
	ID               uuid.UUID          `json:"id"`
	RestaurantID     uuid.UUID          `json:"restaurant_id"`
	CustomerID       uuid.UUID          `json:"customer_id"`
	CourierID        *uuid.UUID         `json:"courier_id,omitempty"`
	Status           enums.OrderStatus  `json:"status"`
	SubtotalCents    int64              `json:"subtotal_cents"`
	DeliveryFeeCents int64              `json:"delivery_fee_cents"`
	TotalCents       int64              `json:"total_cents"`
	Settled          bool               `json:"settled"`
	SettledAt        *time.Time         `json:"settled_at,omitempty"`
	DeliveredAt      *time.Time         `json:"delivered_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
	Items            []lineItemResponse `json:"items"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemResponse{
			ID:             item.ID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents(),
		})
	}
	return orderResponse{
		ID:               order.ID,
		RestaurantID:     order.RestaurantID,
		CustomerID:       order.CustomerID,
		CourierID:        order.CourierID,
		Status:           order.Status,
		SubtotalCents:    order.SubtotalCents,
		DeliveryFeeCents: order.DeliveryFeeCents,
		TotalCents:       order.TotalCents,
		Settled:          order.Settled,
		SettledAt:        order.SettledAt,
		DeliveredAt:      order.DeliveredAt,
		CancelledAt:      order.CancelledAt,
		Items:            items,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
}

type splitResponse struct {
	PlatformCents  int64 `json:"platform_cents"`
	ReferrerCents  int64 `json:"referrer_cents"`
	CourierCents   int64 `json:"courier_cents"`
	CourierClamped bool  `json:"courier_clamped"`
}

func newSplitResponse(split commission.Split) splitResponse {
	return splitResponse{
		PlatformCents:  split.PlatformCents,
		ReferrerCents:  split.ReferrerCents,
		CourierCents:   split.CourierCents,
		CourierClamped: split.CourierClamped,
	}
}

type settlementResponse struct {
	Order    orderResponse `json:"order"`
	Split    splitResponse `json:"split"`
	Replayed bool          `json:"replayed"`
}

func newSettlementResponse(result *settlement.Result) settlementResponse {
	return settlementResponse{
		Order:    newOrderResponse(result.Order),
		Split:    newSplitResponse(result.Split),
		Replayed: result.Replayed,
	}
}

type trustRecordResponse struct {
	RestaurantID    uuid.UUID             `json:"restaurant_id"`
	PointBalance    int64                 `json:"point_balance"`
	WarningCount    int                   `json:"warning_count"`
	Suspended       bool                  `json:"suspended"`
	SuspendedAt     *time.Time            `json:"suspended_at,omitempty"`
	AttributionKind enums.AttributionKind `json:"attribution_kind"`
	ReferrerID      *uuid.UUID            `json:"referrer_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func newTrustRecordResponse(record *models.TrustRecord) trustRecordResponse {
	return trustRecordResponse{
		RestaurantID:    record.RestaurantID,
		PointBalance:    record.PointBalance,
		WarningCount:    record.WarningCount,
		Suspended:       record.Suspended,
		SuspendedAt:     record.SuspendedAt,
		AttributionKind: record.AttributionKind,
		ReferrerID:      record.ReferrerID,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

type trustStatusResponse struct {
	Record trustRecordResponse `json:"record"`
	Status enums.TrustStatus   `json:"status"`
}

func newTrustStatusResponse(status *trust.Status) trustStatusResponse {
	return trustStatusResponse{
		Record: newTrustRecordResponse(status.Record),
		Status: status.Status,
	}
}

type trustEventResponse struct {
	ID            uuid.UUID         `json:"id"`
	RestaurantID  uuid.UUID         `json:"restaurant_id"`
	Signal        enums.TrustSignal `json:"signal"`
	Delta         int64             `json:"delta"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	Suspended     bool              `json:"suspended"`
	OrderID       *uuid.UUID        `json:"order_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func newTrustEventResponses(events []models.TrustEvent) []trustEventResponse {
	out := make([]trustEventResponse, 0, len(events))
	for _, event := range events {
		out = append(out, trustEventResponse{
			ID:            event.ID,
			RestaurantID:  event.RestaurantID,
			Signal:        event.Signal,
			Delta:         event.Delta,
			BalanceBefore: event.BalanceBefore,
			BalanceAfter:  event.BalanceAfter,
			Suspended:     event.Suspended,
			OrderID:       event.OrderID,
			CreatedAt:     event.CreatedAt,
		})
	}
	return out
}

type accountResponse struct {
	ID                     uuid.UUID             `json:"id"`
	PartyKind              enums.LedgerPartyKind `json:"party_kind"`
	PartyID                uuid.UUID             `json:"party_id"`
	BalanceCents           int64                 `json:"balance_cents"`
	LifetimeEarnedCents    int64                 `json:"lifetime_earned_cents"`
	LifetimeWithdrawnCents int64                 `json:"lifetime_withdrawn_cents"`
	CreatedAt              time.Time             `json:"created_at"`
	UpdatedAt              time.Time             `json:"updated_at"`
}

func newAccountResponse(account *models.LedgerAccount) accountResponse {
	return accountResponse{
		ID:                     account.ID,
		PartyKind:              account.PartyKind,
		PartyID:                account.PartyID,
		BalanceCents:           account.BalanceCents,
		LifetimeEarnedCents:    account.LifetimeEarnedCents,
		LifetimeWithdrawnCents: account.LifetimeWithdrawnCents,
		CreatedAt:              account.CreatedAt,
		UpdatedAt:              account.UpdatedAt,
	}
}

type transactionResponse struct {
	ID          uuid.UUID                   `json:"id"`
	AccountID   uuid.UUID                   `json:"account_id"`
	OrderID     *uuid.UUID                  `json:"order_id,omitempty"`
	Kind        enums.LedgerTransactionKind `json:"kind"`
	AmountCents int64                       `json:"amount_cents"`
	Note        *string                     `json:"note,omitempty"`
	CreatedAt   time.Time                   `json:"created_at"`
}

func newTransactionResponse(txn *models.LedgerTransaction) transactionResponse {
	return transactionResponse{
		ID:          txn.ID,
		AccountID:   txn.AccountID,
		OrderID:     txn.OrderID,
		Kind:        txn.Kind,
		AmountCents: txn.AmountCents,
		Note:        txn.Note,
		CreatedAt:   txn.CreatedAt,
	}
}

func newTransactionResponses(txns []models.LedgerTransaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, newTransactionResponse(&txns[i]))
	}
	return out
}

type auditEntryResponse struct {
	ID         uuid.UUID             `json:"id"`
	Action     enums.AuditAction     `json:"action"`
	TargetType enums.AuditTargetType `json:"target_type"`
	TargetID   uuid.UUID             `json:"target_id"`
	ActorID    uuid.UUID             `json:"actor_id"`
	ActorRole  enums.ActorRole       `json:"actor_role"`
	Detail     string                `json:"detail"`
	Payload    json.RawMessage       `json:"payload,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

type auditPageResponse struct {
	Entries    []auditEntryResponse `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

func newAuditPageResponse(entries []models.AuditEntry, nextCursor string) auditPageResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditEntryResponse{
			ID:         entry.ID,
			Action:     entry.Action,
			TargetType: entry.TargetType,
			TargetID:   entry.TargetID,
			ActorID:    entry.ActorID,
			ActorRole:  entry.ActorRole,
			Detail:     entry.Detail,
			Payload:    entry.Payload,
			CreatedAt:  entry.CreatedAt,
		})
	}
	return auditPageResponse{Entries: out, NextCursor: nextCursor}
}

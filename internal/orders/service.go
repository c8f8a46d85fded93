package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Settler settles a delivered order. It is attached after construction
// because the settlement engine reads orders through this package.
type Settler interface {
	Settle(ctx context.Context, orderID uuid.UUID, actor audit.Actor) error
}

// LineItemInput is one order line as submitted by the customer surface.
type LineItemInput struct {
	Name           string
	UnitPriceCents int64
	Quantity       int
}

// CreateOrderInput carries everything needed to open a pending order.
type CreateOrderInput struct {
	RestaurantID     uuid.UUID
	CustomerID       uuid.UUID
	DeliveryFeeCents int64
	Items            []LineItemInput
}

// TransitionInput moves an order one lifecycle step.
type TransitionInput struct {
	OrderID   uuid.UUID
	To        enums.OrderStatus
	CourierID *uuid.UUID
	Actor     audit.Actor
}

// Service owns the order lifecycle: creation, the guarded state machine, and
// the delivered/cancelled side effects.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
	SetSettler(settler Settler)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	auditSvc audit.Service
	trustSvc trust.Service
	settler  Settler
	logg     *logger.Logger
}

// NewService builds an orders service. The trust service may be nil in
// contexts that never cancel orders (e.g. the outbox relay).
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, auditSvc audit.Service, trustSvc trust.Service, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		auditSvc: auditSvc,
		trustSvc: trustSvc,
		logg:     logg,
	}, nil
}

func (s *service) SetSettler(settler Settler) {
	s.settler = settler
}

// Create validates the money invariants and opens the order in pending.
func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.DeliveryFeeCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery fee must not be negative")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one line item")
	}

	order := &models.Order{
		ID:               uuid.New(),
		RestaurantID:     input.RestaurantID,
		CustomerID:       input.CustomerID,
		Status:           enums.OrderStatusPending,
		DeliveryFeeCents: input.DeliveryFeeCents,
	}

	var subtotal int64
	for _, item := range input.Items {
		if item.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item name is required")
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item unit price must not be negative")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be positive")
		}
		line := models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        order.ID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		}
		subtotal += line.LineTotalCents()
		order.Items = append(order.Items, line)
	}
	order.SubtotalCents = subtotal
	order.TotalCents = subtotal + input.DeliveryFeeCents

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return order, nil
}

// Transition applies one lifecycle step. The status write is guarded on the
// loaded status, so concurrent movers lose with STATE_CONFLICT instead of
// silently double-applying side effects.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.To))
	}
	if !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}

	order, err := s.Get(ctx, input.OrderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !CanTransition(from, input.To) {
		if from.IsTerminal() {
			return nil, pkgerrors.New(pkgerrors.CodeOrderFinal, fmt.Sprintf("order is already %s", from))
		}
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move order from %s to %s", from, input.To))
	}

	now := time.Now().UTC()
	updates := map[string]any{"updated_at": now}
	switch input.To {
	case enums.OrderStatusOutForDelivery:
		if input.CourierID != nil {
			updates["courier_id"] = *input.CourierID
		}
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
	case enums.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		moved, err := repo.UpdateStatusGuarded(ctx, order.ID, from, input.To, updates)
		if err != nil {
			return err
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		if _, err := s.auditSvc.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionOrderTransitioned,
			TargetType: enums.AuditTargetOrder,
			TargetID:   order.ID,
			Actor:      input.Actor,
			Detail:     fmt.Sprintf("order moved from %s to %s", from, input.To),
			Payload:    audit.TransitionPayload{From: from, To: input.To},
		}); err != nil {
			return err
		}

		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStateChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
				Data: map[string]any{
					"from": from,
					"to":   input.To,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.runSideEffects(ctx, order, input)

	return s.Get(ctx, input.OrderID)
}

// runSideEffects fires the post-commit consequences of a transition. Both are
// recoverable out of band (explicit settle endpoint, manual trust signal), so
// failures log rather than unwind the committed transition.
func (s *service) runSideEffects(ctx context.Context, order *models.Order, input TransitionInput) {
	switch input.To {
	case enums.OrderStatusDelivered:
		if s.settler == nil {
			return
		}
		if err := s.settler.Settle(ctx, order.ID, audit.SystemActor); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "settlement after delivery failed", err)
			}
		}
	case enums.OrderStatusCancelled:
		if s.trustSvc == nil || input.Actor.Role != enums.ActorRoleOwner {
			return
		}
		orderID := order.ID
		if _, err := s.trustSvc.ApplySignal(ctx, trust.ApplySignalInput{
			RestaurantID: order.RestaurantID,
			Signal:       enums.TrustSignalOrderCancelledByRestaurant,
			OrderID:      &orderID,
			Actor:        input.Actor,
		}); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "trust signal after cancellation failed", err)
			}
		}
	}
}

package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/commission"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/db"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/metrics"
	"github.com/moodegoozy/sofra-core/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result reports what one Settle call did. Replayed means the order was
// already settled and nothing was written.
type Result struct {
	Order    *models.Order
	Split    commission.Split
	Replayed bool
}

// Service is the settlement engine: it turns one delivered order into its
// ledger postings, exactly once, no matter how many times it is called.
type Service interface {
	Settle(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (*Result, error)
}

type service struct {
	tx         txRunner
	ordersRepo orders.Repository
	ledgerRepo ledger.Repository
	trustRepo  trust.Repository
	trustSvc   trust.Service
	calc       *commission.Calculator
	auditSvc   audit.Service
	outboxSvc  *outbox.Service
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	retries    int
}

// NewService wires the settlement engine. Trust, outbox, and metrics are
// optional; the money path is not.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	ledgerRepo ledger.Repository,
	trustRepo trust.Repository,
	trustSvc trust.Service,
	calc *commission.Calculator,
	auditSvc audit.Service,
	outboxSvc *outbox.Service,
	m *metrics.SettlementMetrics,
	logg *logger.Logger,
	conflictRetries int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if calc == nil {
		return nil, fmt.Errorf("commission calculator required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if conflictRetries <= 0 {
		conflictRetries = 3
	}
	return &service{
		tx:         tx,
		ordersRepo: ordersRepo,
		ledgerRepo: ledgerRepo,
		trustRepo:  trustRepo,
		trustSvc:   trustSvc,
		calc:       calc,
		auditSvc:   auditSvc,
		outboxSvc:  outboxSvc,
		metrics:    m,
		logg:       logg,
		retries:    conflictRetries,
	}, nil
}

// Settle credits the platform, referrer, and courier for one delivered
// order. Replays are success no-ops; concurrent settles collapse to one
// winner via the settled-flag flip and the (account, order, kind) posting
// guard.
func (s *service) Settle(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (*Result, error) {
	start := time.Now()
	result, err := s.settle(ctx, orderID, actor)
	switch {
	case err != nil:
		s.metrics.ObserveDuration("failure", time.Since(start))
		s.metrics.IncFailure(string(pkgerrors.CodeOf(err)))
	case result.Replayed:
		s.metrics.ObserveDuration("replay", time.Since(start))
		s.metrics.IncReplayed()
	default:
		s.metrics.ObserveDuration("settled", time.Since(start))
		s.metrics.IncSettled()
	}
	return result, err
}

func (s *service) settle(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}

	for attempt := 0; ; attempt++ {
		result, err := s.settleOnce(ctx, orderID, actor)
		if err == nil {
			return result, nil
		}
		if !db.IsSerializationFailure(err) || attempt+1 >= s.retries {
			if db.IsSerializationFailure(err) {
				s.metrics.IncConflict()
				return nil, pkgerrors.Wrap(pkgerrors.CodeSettlementConflict, err, "settlement kept losing to concurrent writers")
			}
			return nil, err
		}
		s.metrics.IncConflict()
		if s.logg != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, orderID.String()), "settlement transaction conflicted, retrying")
		}
	}
}

func (s *service) settleOnce(ctx context.Context, orderID uuid.UUID, actor audit.Actor) (*Result, error) {
	order, err := s.ordersRepo.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}

	if order.Settled {
		return &Result{Order: order, Replayed: true}, nil
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeNotSettleable, fmt.Sprintf("order is %s, only delivered orders settle", order.Status))
	}

	attribution, referrerID, err := s.restaurantAttribution(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}
	split, err := s.calc.ComputeSplit(commission.Input{
		ItemCount:        order.ItemCount(),
		DeliveryFeeCents: order.DeliveryFeeCents,
		Attribution:      attribution,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "computing commission split")
	}
	if split.CourierClamped {
		s.metrics.IncCourierClamped()
	}

	replayed := false
	var postings []audit.PostingPayload
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		settled, err := ordersRepo.MarkSettled(ctx, order.ID, time.Now().UTC())
		if err != nil {
			return err
		}
		if !settled {
			// Another settle won between our load and this flip.
			replayed = true
			return nil
		}

		postings, err = s.postSplit(ctx, ledgerRepo, order, referrerID, split)
		if err != nil {
			return err
		}

		if _, err := s.auditSvc.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionOrderSettled,
			TargetType: enums.AuditTargetOrder,
			TargetID:   order.ID,
			Actor:      actor,
			Detail:     fmt.Sprintf("order settled with %s attribution", attribution),
			Payload: audit.SettlementPayload{
				OrderID:        order.ID,
				Attribution:    attribution,
				ItemCount:      order.ItemCount(),
				PlatformCents:  split.PlatformCents,
				ReferrerCents:  split.ReferrerCents,
				CourierCents:   split.CourierCents,
				CourierClamped: split.CourierClamped,
				Postings:       postings,
			},
		}); err != nil {
			return err
		}

		if s.outboxSvc != nil {
			return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderSettled,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{ActorID: actor.ID, Role: actor.Role},
				Data: map[string]any{
					"order_id":        order.ID,
					"platform_cents":  split.PlatformCents,
					"referrer_cents":  split.ReferrerCents,
					"courier_cents":   split.CourierCents,
					"courier_clamped": split.CourierClamped,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		order, err := s.ordersRepo.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		return &Result{Order: order, Replayed: true}, nil
	}

	// The delivered signal rides outside the money transaction: it is its own
	// atomic unit and fires once because only one caller flips the flag.
	if s.trustSvc != nil {
		oid := order.ID
		if _, err := s.trustSvc.ApplySignal(ctx, trust.ApplySignalInput{
			RestaurantID: order.RestaurantID,
			Signal:       enums.TrustSignalOrderDelivered,
			OrderID:      &oid,
			Actor:        audit.SystemActor,
		}); err != nil && s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "delivered trust signal failed", err)
		}
	}

	settledOrder, err := s.ordersRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: settledOrder, Split: split}, nil
}

// postSplit writes one ledger posting per non-zero amount.
func (s *service) postSplit(ctx context.Context, ledgerRepo ledger.Repository, order *models.Order, referrerID *uuid.UUID, split commission.Split) ([]audit.PostingPayload, error) {
	var postings []audit.PostingPayload

	post := func(kind enums.LedgerPartyKind, partyID uuid.UUID, txKind enums.LedgerTransactionKind, amount int64) error {
		if amount <= 0 {
			return nil
		}
		account, _, err := ledger.Post(ctx, ledgerRepo, ledger.PostingInput{
			PartyKind:   kind,
			PartyID:     partyID,
			OrderID:     order.ID,
			Kind:        txKind,
			AmountCents: amount,
		})
		if err != nil {
			return err
		}
		postings = append(postings, audit.PostingPayload{
			AccountID:   account.ID,
			PartyKind:   kind,
			PartyID:     partyID,
			Kind:        txKind,
			AmountCents: amount,
		})
		return nil
	}

	if err := post(enums.LedgerPartyKindPlatform, ledger.PlatformPartyID, enums.LedgerTransactionKindPlatformFee, split.PlatformCents); err != nil {
		return nil, err
	}
	if referrerID != nil {
		if err := post(enums.LedgerPartyKindReferrer, *referrerID, enums.LedgerTransactionKindReferrerCommission, split.ReferrerCents); err != nil {
			return nil, err
		}
	}
	if order.CourierID != nil {
		if err := post(enums.LedgerPartyKindCourier, *order.CourierID, enums.LedgerTransactionKindCourierFee, split.CourierCents); err != nil {
			return nil, err
		}
	}
	return postings, nil
}

// restaurantAttribution reads the trust record; only a missing record means
// the restaurant settles as unattributed. Any other read failure must abort
// the settle: the settled flag makes a retry a no-op, so defaulting here
// would silently drop a referrer commission.
func (s *service) restaurantAttribution(ctx context.Context, restaurantID uuid.UUID) (enums.AttributionKind, *uuid.UUID, error) {
	if s.trustRepo == nil {
		return enums.AttributionKindNone, nil, nil
	}
	record, err := s.trustRepo.Get(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return enums.AttributionKindNone, nil, nil
		}
		return "", nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading restaurant attribution")
	}
	return record.AttributionKind, record.ReferrerID, nil
}

// Trigger adapts the engine to the orders-package settler hook.
type Trigger struct {
	svc Service
}

// NewTrigger returns the adapter installed on the orders service.
func NewTrigger(svc Service) Trigger {
	return Trigger{svc: svc}
}

func (t Trigger) Settle(ctx context.Context, orderID uuid.UUID, actor audit.Actor) error {
	_, err := t.svc.Settle(ctx, orderID, actor)
	return err
}

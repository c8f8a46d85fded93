package trust

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/metrics"
	"github.com/moodegoozy/sofra-core/pkg/outbox"
	"github.com/moodegoozy/sofra-core/pkg/types"
)

const applyRetries = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ApplySignalInput carries one trust signal. Magnitude is consulted only for
// manual_adjustment, which has no configured delta.
type ApplySignalInput struct {
	RestaurantID uuid.UUID
	Signal       enums.TrustSignal
	Magnitude    int64
	OrderID      *uuid.UUID
	Actor        audit.Actor
}

// Status is the derived health of a restaurant's trust record.
type Status struct {
	Record *models.TrustRecord
	Status enums.TrustStatus
}

// Service owns the trust-point lifecycle: seeding, signal application with
// clamping and sticky suspension, and the explicit admin unsuspension.
type Service interface {
	CreateRecord(ctx context.Context, restaurantID uuid.UUID, attribution types.Attribution) (*models.TrustRecord, error)
	ApplySignal(ctx context.Context, input ApplySignalInput) (*models.TrustRecord, error)
	ClearSuspension(ctx context.Context, restaurantID uuid.UUID, actor audit.Actor, reason string) (*models.TrustRecord, error)
	GetStatus(ctx context.Context, restaurantID uuid.UUID) (*Status, error)
	ListEvents(ctx context.Context, restaurantID uuid.UUID) ([]models.TrustEvent, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	auditSvc  audit.Service
	outboxSvc *outbox.Service
	cfg       config.TrustConfig
	metrics   *metrics.SettlementMetrics
	logg      *logger.Logger
}

// NewService wires a trust service. The metrics and outbox dependencies may
// be nil.
func NewService(tx txRunner, repo Repository, auditSvc audit.Service, outboxSvc *outbox.Service, cfg config.TrustConfig, m *metrics.SettlementMetrics, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("trust repository required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &service{
		tx:        tx,
		repo:      repo,
		auditSvc:  auditSvc,
		outboxSvc: outboxSvc,
		cfg:       cfg,
		metrics:   m,
		logg:      logg,
	}, nil
}

// CreateRecord seeds a restaurant at the configured starting balance.
func (s *service) CreateRecord(ctx context.Context, restaurantID uuid.UUID, attribution types.Attribution) (*models.TrustRecord, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if err := attribution.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid attribution")
	}

	record := &models.TrustRecord{
		RestaurantID:    restaurantID,
		PointBalance:    s.cfg.StartingPoints,
		AttributionKind: attribution.Kind,
		ReferrerID:      attribution.ReferrerID,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ApplySignal moves the balance by the signal's configured delta, clamped to
// [floor, ceiling]. A downward crossing of the suspension threshold flips the
// sticky suspended flag and counts a warning. Every application is recorded
// in the event history and audit log, clamped-to-zero deltas included.
func (s *service) ApplySignal(ctx context.Context, input ApplySignalInput) (*models.TrustRecord, error) {
	if input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if !input.Signal.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid trust signal %q", input.Signal))
	}
	if input.Signal == enums.TrustSignalManualAdjustment && input.Magnitude == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "manual trust adjustment requires a magnitude")
	}
	if !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}

	var record *models.TrustRecord
	for attempt := 0; attempt < applyRetries; attempt++ {
		var conflicted bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			applied, err := s.applySignalTx(ctx, tx, input)
			if err != nil {
				return err
			}
			if applied == nil {
				conflicted = true
				return pkgerrors.New(pkgerrors.CodeStateConflict, "trust record changed concurrently")
			}
			record = applied
			return nil
		})
		if err == nil {
			return record, nil
		}
		if !conflicted {
			return nil, err
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeSettlementConflict, "trust record kept losing to concurrent writers")
}

func (s *service) applySignalTx(ctx context.Context, tx *gorm.DB, input ApplySignalInput) (*models.TrustRecord, error) {
	repo := s.repo.WithTx(tx)

	record, err := repo.Get(ctx, input.RestaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trust record not found")
		}
		return nil, err
	}

	before := record.PointBalance
	delta := s.deltaFor(input.Signal, input.Magnitude)
	after := clamp(before+delta, s.cfg.FloorPoints, s.cfg.CeilingPoints)

	newlySuspended := false
	if !record.Suspended && before >= s.cfg.SuspensionThreshold && after < s.cfg.SuspensionThreshold {
		newlySuspended = true
		record.Suspended = true
		now := time.Now().UTC()
		record.SuspendedAt = &now
		record.WarningCount++
	}
	record.PointBalance = after

	updated, err := repo.UpdateGuarded(ctx, record, before)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, nil
	}

	if err := repo.CreateEvent(ctx, &models.TrustEvent{
		RestaurantID:  record.RestaurantID,
		Signal:        input.Signal,
		Delta:         after - before,
		BalanceBefore: before,
		BalanceAfter:  after,
		Suspended:     record.Suspended,
		OrderID:       input.OrderID,
	}); err != nil {
		return nil, err
	}

	if _, err := s.auditSvc.Record(ctx, tx, audit.RecordInput{
		Action:     enums.AuditActionTrustSignalApplied,
		TargetType: enums.AuditTargetRestaurant,
		TargetID:   record.RestaurantID,
		Actor:      input.Actor,
		Detail:     fmt.Sprintf("signal %s applied", input.Signal),
		Payload: audit.TrustSignalPayload{
			Signal:        input.Signal,
			Delta:         after - before,
			BalanceBefore: before,
			BalanceAfter:  after,
			WarningCount:  record.WarningCount,
			Suspended:     record.Suspended,
			OrderID:       input.OrderID,
		},
	}); err != nil {
		return nil, err
	}

	if s.outboxSvc != nil {
		if err := s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventTrustSignalApplied,
			AggregateType: enums.AggregateRestaurant,
			AggregateID:   record.RestaurantID,
			Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
			Data: map[string]any{
				"signal":         input.Signal,
				"balance_before": before,
				"balance_after":  after,
				"suspended":      record.Suspended,
			},
		}); err != nil {
			return nil, err
		}
		if newlySuspended {
			if err := s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRestaurantSuspended,
				AggregateType: enums.AggregateRestaurant,
				AggregateID:   record.RestaurantID,
				Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
				Data: map[string]any{
					"point_balance": after,
					"warning_count": record.WarningCount,
				},
			}); err != nil {
				return nil, err
			}
		}
	}

	if newlySuspended {
		s.metrics.IncSuspension()
		if s.logg != nil {
			s.logg.Warn(s.logg.WithRestaurantID(ctx, record.RestaurantID.String()), "restaurant suspended by trust threshold crossing")
		}
	}

	return record, nil
}

// ClearSuspension is the only path out of a suspension. It never touches the
// point balance.
func (s *service) ClearSuspension(ctx context.Context, restaurantID uuid.UUID, actor audit.Actor, reason string) (*models.TrustRecord, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id is required")
	}
	if !actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}

	var record *models.TrustRecord
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		got, err := repo.Get(ctx, restaurantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trust record not found")
			}
			return err
		}
		if !got.Suspended {
			return pkgerrors.New(pkgerrors.CodeConflict, "restaurant is not suspended")
		}

		got.Suspended = false
		got.SuspendedAt = nil
		updated, err := repo.UpdateGuarded(ctx, got, got.PointBalance)
		if err != nil {
			return err
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "trust record changed concurrently")
		}

		if _, err := s.auditSvc.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionSuspensionCleared,
			TargetType: enums.AuditTargetRestaurant,
			TargetID:   restaurantID,
			Actor:      actor,
			Detail:     reason,
			Payload: audit.SuspensionClearedPayload{
				BalanceAtClear: got.PointBalance,
				Reason:         reason,
			},
		}); err != nil {
			return err
		}

		if s.outboxSvc != nil {
			if err := s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSuspensionCleared,
				AggregateType: enums.AggregateRestaurant,
				AggregateID:   restaurantID,
				Actor:         &outbox.ActorRef{ActorID: actor.ID, Role: actor.Role},
				Data:          map[string]any{"point_balance": got.PointBalance},
			}); err != nil {
				return err
			}
		}

		record = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) GetStatus(ctx context.Context, restaurantID uuid.UUID) (*Status, error) {
	record, err := s.repo.Get(ctx, restaurantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trust record not found")
		}
		return nil, err
	}
	return &Status{Record: record, Status: s.deriveStatus(record)}, nil
}

func (s *service) ListEvents(ctx context.Context, restaurantID uuid.UUID) ([]models.TrustEvent, error) {
	if _, err := s.GetStatus(ctx, restaurantID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, restaurantID)
}

func (s *service) deriveStatus(record *models.TrustRecord) enums.TrustStatus {
	switch {
	case record.Suspended:
		return enums.TrustStatusSuspended
	case record.PointBalance < s.cfg.WarningThreshold:
		return enums.TrustStatusWarned
	default:
		return enums.TrustStatusActive
	}
}

func (s *service) deltaFor(signal enums.TrustSignal, magnitude int64) int64 {
	switch signal {
	case enums.TrustSignalOrderDelivered:
		return s.cfg.DeliveredDelta
	case enums.TrustSignalOrderCancelledByRestaurant:
		return s.cfg.CancelledDelta
	case enums.TrustSignalLateDelivery:
		return s.cfg.LateDeliveryDelta
	case enums.TrustSignalCustomerComplaint:
		return s.cfg.ComplaintDelta
	default:
		return magnitude
	}
}

func clamp(value, floor, ceiling int64) int64 {
	if value < floor {
		return floor
	}
	if value > ceiling {
		return ceiling
	}
	return value
}

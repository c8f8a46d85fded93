package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PostingInput describes one settlement posting against a party. Settlement
// postings are credits keyed by (account, order, kind).
type PostingInput struct {
	PartyKind   enums.LedgerPartyKind
	PartyID     uuid.UUID
	OrderID     uuid.UUID
	Kind        enums.LedgerTransactionKind
	AmountCents int64
	Note        *string
}

// Post records one posting inside the caller's transaction, creating the
// party's account lazily. It reports applied=false when the (account, order,
// kind) posting already exists; the balance is not moved again in that case.
func Post(ctx context.Context, repo Repository, in PostingInput) (*models.LedgerAccount, bool, error) {
	if !in.PartyKind.IsValid() {
		return nil, false, fmt.Errorf("invalid ledger party kind %q", in.PartyKind)
	}
	if in.PartyID == uuid.Nil {
		return nil, false, fmt.Errorf("party id is required")
	}
	if in.OrderID == uuid.Nil {
		return nil, false, fmt.Errorf("order id is required")
	}
	if !in.Kind.IsValid() {
		return nil, false, fmt.Errorf("invalid ledger transaction kind %q", in.Kind)
	}
	if in.AmountCents <= 0 {
		return nil, false, fmt.Errorf("posting amount must be positive, got %d", in.AmountCents)
	}

	account, err := repo.EnsureAccount(ctx, in.PartyKind, in.PartyID)
	if err != nil {
		return nil, false, err
	}

	orderID := in.OrderID
	created, err := repo.CreateTransaction(ctx, &models.LedgerTransaction{
		AccountID:   account.ID,
		OrderID:     &orderID,
		Kind:        in.Kind,
		AmountCents: in.AmountCents,
		Note:        in.Note,
	})
	if err != nil {
		return nil, false, err
	}
	if !created {
		return account, false, nil
	}

	applied, err := repo.ApplyAmount(ctx, account.ID, in.AmountCents)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, fmt.Errorf("posting %s/%s for order %s did not apply", in.PartyKind, in.Kind, in.OrderID)
	}
	account.BalanceCents += in.AmountCents
	account.LifetimeEarnedCents += in.AmountCents
	return account, true, nil
}

// AdjustInput is a manual, audited balance correction. The posting carries no
// order id, so repeated adjustments are distinct by design.
type AdjustInput struct {
	AccountID   uuid.UUID
	AmountCents int64
	Actor       audit.Actor
	Reason      string
}

// Service exposes ledger reads and the manual adjustment operation.
type Service interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (*models.LedgerAccount, error)
	GetAccountByParty(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID) ([]models.LedgerTransaction, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.LedgerTransaction, error)
}

type service struct {
	tx        txRunner
	repo      Repository
	auditSvc  audit.Service
	outboxSvc *outbox.Service
}

// NewService wires a ledger service.
func NewService(tx txRunner, repo Repository, auditSvc audit.Service, outboxSvc *outbox.Service) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{tx: tx, repo: repo, auditSvc: auditSvc, outboxSvc: outboxSvc}, nil
}

func (s *service) GetBalance(ctx context.Context, accountID uuid.UUID) (*models.LedgerAccount, error) {
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger account not found")
		}
		return nil, err
	}
	return account, nil
}

func (s *service) GetAccountByParty(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger party kind")
	}
	account, err := s.repo.GetAccountByParty(ctx, kind, partyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ledger account not found")
		}
		return nil, err
	}
	return account, nil
}

func (s *service) ListTransactions(ctx context.Context, accountID uuid.UUID) ([]models.LedgerTransaction, error) {
	if _, err := s.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactionsByAccount(ctx, accountID)
}

// Adjust posts a signed manual_adjustment transaction, refusing moves that
// would drive the balance negative. The adjustment, its audit entry, and the
// outbox event commit together.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.LedgerTransaction, error) {
	if input.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if input.AmountCents == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount must not be zero")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment reason is required")
	}
	if !input.Actor.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid actor role")
	}

	var txn *models.LedgerTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.GetAccountByID(ctx, input.AccountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "ledger account not found")
			}
			return err
		}

		applied, err := repo.ApplyAmount(ctx, account.ID, input.AmountCents)
		if err != nil {
			return err
		}
		if !applied {
			return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drive balance negative")
		}

		reason := input.Reason
		txn = &models.LedgerTransaction{
			AccountID:   account.ID,
			Kind:        enums.LedgerTransactionKindManualAdjustment,
			AmountCents: input.AmountCents,
			Note:        &reason,
		}
		if _, err := repo.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		if _, err := s.auditSvc.Record(ctx, tx, audit.RecordInput{
			Action:     enums.AuditActionLedgerAdjusted,
			TargetType: enums.AuditTargetLedgerAccount,
			TargetID:   account.ID,
			Actor:      input.Actor,
			Detail:     reason,
			Payload: audit.AdjustmentPayload{
				AccountID:     account.ID,
				AmountCents:   input.AmountCents,
				BalanceBefore: account.BalanceCents,
				BalanceAfter:  account.BalanceCents + input.AmountCents,
				Reason:        reason,
			},
		}); err != nil {
			return err
		}

		if s.outboxSvc != nil {
			return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventLedgerAdjusted,
				AggregateType: enums.AggregateLedgerAccount,
				AggregateID:   account.ID,
				Actor:         &outbox.ActorRef{ActorID: input.Actor.ID, Role: input.Actor.Role},
				Data: map[string]any{
					"account_id":   account.ID,
					"amount_cents": input.AmountCents,
					"reason":       reason,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

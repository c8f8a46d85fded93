package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/pkg/db"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
)

// PlatformPartyID is the fixed party id of the platform's singleton account.
var PlatformPartyID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// Repository manages persistence for ledger accounts and their immutable
// transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccountByID(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error)
	GetAccountByParty(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error)
	EnsureAccount(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error)
	CreateTransaction(ctx context.Context, txn *models.LedgerTransaction) (bool, error)
	ApplyAmount(ctx context.Context, accountID uuid.UUID, amountCents int64) (bool, error)
	ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.LedgerTransaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerTransaction, error)
	ListAccounts(ctx context.Context) ([]models.LedgerAccount, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccountByParty(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error) {
	var account models.LedgerAccount
	if err := r.db.WithContext(ctx).
		First(&account, "party_kind = ? AND party_id = ?", kind, partyID).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureAccount returns the party's account, creating it on first use. A
// concurrent create losing the unique-index race falls back to re-fetching.
func (r *repository) EnsureAccount(ctx context.Context, kind enums.LedgerPartyKind, partyID uuid.UUID) (*models.LedgerAccount, error) {
	account, err := r.GetAccountByParty(ctx, kind, partyID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	created := &models.LedgerAccount{
		ID:        uuid.New(),
		PartyKind: kind,
		PartyID:   partyID,
	}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_ledger_accounts_party") {
			return r.GetAccountByParty(ctx, kind, partyID)
		}
		return nil, err
	}
	return created, nil
}

// CreateTransaction inserts one posting. A duplicate (account, order, kind)
// posting reports false with no error; the caller must not re-apply the
// amount.
func (r *repository) CreateTransaction(ctx context.Context, txn *models.LedgerTransaction) (bool, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if txn.OrderID != nil && db.IsUniqueViolation(err, "idx_ledger_tx_account_order_kind") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ApplyAmount moves the running balance by amountCents in one guarded
// statement. It reports false when the account is missing or the move would
// drive the balance negative.
func (r *repository) ApplyAmount(ctx context.Context, accountID uuid.UUID, amountCents int64) (bool, error) {
	var earnedDelta, withdrawnDelta int64
	if amountCents > 0 {
		earnedDelta = amountCents
	} else {
		withdrawnDelta = -amountCents
	}

	res := r.db.WithContext(ctx).Model(&models.LedgerAccount{}).
		Where("id = ? AND balance_cents + ? >= 0", accountID, amountCents).
		Updates(map[string]any{
			"balance_cents":            gorm.Expr("balance_cents + ?", amountCents),
			"lifetime_earned_cents":    gorm.Expr("lifetime_earned_cents + ?", earnedDelta),
			"lifetime_withdrawn_cents": gorm.Expr("lifetime_withdrawn_cents + ?", withdrawnDelta),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListTransactionsByAccount(ctx context.Context, accountID uuid.UUID) ([]models.LedgerTransaction, error) {
	var txns []models.LedgerTransaction
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerTransaction, error) {
	var txns []models.LedgerTransaction
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) ListAccounts(ctx context.Context) ([]models.LedgerAccount, error) {
	var accounts []models.LedgerAccount
	if err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

package settlement

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/commission"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/config"
	"github.com/moodegoozy/sofra-core/pkg/db"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/types"
)

func setupSettlementTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  courier_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal_cents INTEGER NOT NULL,
  delivery_fee_cents INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  settled INTEGER NOT NULL DEFAULT 0,
  settled_at DATETIME,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  created_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS ledger_accounts (
  id TEXT PRIMARY KEY,
  party_kind TEXT NOT NULL,
  party_id TEXT NOT NULL,
  balance_cents INTEGER NOT NULL DEFAULT 0,
  lifetime_earned_cents INTEGER NOT NULL DEFAULT 0,
  lifetime_withdrawn_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_accounts_party ON ledger_accounts (party_kind, party_id);
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  order_id TEXT,
  kind TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  note TEXT,
  created_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_tx_account_order_kind
  ON ledger_transactions (account_id, order_id, kind)
  WHERE order_id IS NOT NULL;
CREATE TABLE IF NOT EXISTS trust_records (
  restaurant_id TEXT PRIMARY KEY,
  point_balance INTEGER NOT NULL,
  warning_count INTEGER NOT NULL DEFAULT 0,
  suspended INTEGER NOT NULL DEFAULT 0,
  suspended_at DATETIME,
  attribution_kind TEXT NOT NULL DEFAULT 'none',
  referrer_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS trust_events (
  id TEXT PRIMARY KEY,
  restaurant_id TEXT NOT NULL,
  signal TEXT NOT NULL,
  delta INTEGER NOT NULL,
  balance_before INTEGER NOT NULL,
  balance_after INTEGER NOT NULL,
  suspended INTEGER NOT NULL,
  order_id TEXT,
  created_at DATETIME
);
CREATE TABLE IF NOT EXISTS audit_entries (
  id TEXT PRIMARY KEY,
  action TEXT NOT NULL,
  target_type TEXT NOT NULL,
  target_id TEXT NOT NULL,
  actor_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  detail TEXT NOT NULL,
  payload TEXT,
  created_at DATETIME
);`
	require.NoError(t, conn.Exec(schema).Error)
	return conn
}

type settlementFixture struct {
	conn       *gorm.DB
	svc        Service
	ordersSvc  orders.Service
	trustSvc   trust.Service
	ledgerRepo ledger.Repository
	auditSvc   audit.Service
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	conn := setupSettlementTestDB(t)
	runner := db.FromConn(conn)

	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	require.NoError(t, err)

	trustCfg := config.TrustConfig{
		StartingPoints:      100,
		FloorPoints:         0,
		CeilingPoints:       200,
		WarningThreshold:    50,
		SuspensionThreshold: 20,
		DeliveredDelta:      5,
		CancelledDelta:      -30,
		LateDeliveryDelta:   -10,
		ComplaintDelta:      -40,
	}
	trustRepo := trust.NewRepository(conn)
	trustSvc, err := trust.NewService(runner, trustRepo, auditSvc, nil, trustCfg, nil, nil)
	require.NoError(t, err)

	calc, err := commission.NewCalculator(config.CommissionConfig{
		PerItemPlatformFeeCents:  100,
		PerItemReferrerRateCents: 75,
		CourierDeductionCents:    150,
	})
	require.NoError(t, err)

	ordersRepo := orders.NewRepository(conn)
	ordersSvc, err := orders.NewService(ordersRepo, runner, nil, auditSvc, trustSvc, nil)
	require.NoError(t, err)

	ledgerRepo := ledger.NewRepository(conn)
	svc, err := NewService(runner, ordersRepo, ledgerRepo, trustRepo, trustSvc, calc, auditSvc, nil, nil, nil, 3)
	require.NoError(t, err)

	return &settlementFixture{
		conn:       conn,
		svc:        svc,
		ordersSvc:  ordersSvc,
		trustSvc:   trustSvc,
		ledgerRepo: ledgerRepo,
		auditSvc:   auditSvc,
	}
}

// deliverOrder creates a five-item order with a 500c delivery fee and walks
// it to delivered with no settler attached.
func (f *settlementFixture) deliverOrder(t *testing.T, restaurantID uuid.UUID, courierID *uuid.UUID) *models.Order {
	t.Helper()

	ctx := context.Background()
	order, err := f.ordersSvc.Create(ctx, orders.CreateOrderInput{
		RestaurantID:     restaurantID,
		CustomerID:       uuid.New(),
		DeliveryFeeCents: 500,
		Items: []orders.LineItemInput{
			{Name: "koshari bowl", UnitPriceCents: 900, Quantity: 2},
			{Name: "falafel wrap", UnitPriceCents: 600, Quantity: 3},
		},
	})
	require.NoError(t, err)

	actor := audit.Actor{ID: uuid.New(), Role: enums.ActorRoleOwner}
	for _, next := range []enums.OrderStatus{
		enums.OrderStatusAccepted,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
	} {
		_, err = f.ordersSvc.Transition(ctx, orders.TransitionInput{OrderID: order.ID, To: next, Actor: actor})
		require.NoError(t, err)
	}
	_, err = f.ordersSvc.Transition(ctx, orders.TransitionInput{
		OrderID:   order.ID,
		To:        enums.OrderStatusOutForDelivery,
		CourierID: courierID,
		Actor:     audit.Actor{ID: uuid.New(), Role: enums.ActorRoleCourier},
	})
	require.NoError(t, err)
	_, err = f.ordersSvc.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusDelivered,
		Actor:   audit.Actor{ID: uuid.New(), Role: enums.ActorRoleCourier},
	})
	require.NoError(t, err)
	return order
}

func (f *settlementFixture) balanceFor(t *testing.T, kind enums.LedgerPartyKind, partyID uuid.UUID) int64 {
	t.Helper()

	account, err := f.ledgerRepo.GetAccountByParty(context.Background(), kind, partyID)
	require.NoError(t, err)
	return account.BalanceCents
}

func TestSettleSupervisorAdminAttribution(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	referrerID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{
		Kind:       enums.AttributionKindSupervisorAdmin,
		ReferrerID: &referrerID,
	})
	require.NoError(t, err)

	order := f.deliverOrder(t, restaurantID, &courierID)

	result, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	require.False(t, result.Replayed)
	assert.True(t, result.Order.Settled)
	assert.NotNil(t, result.Order.SettledAt)

	// 5 items: platform 5×100, referrer 5×75, courier 500−150.
	assert.Equal(t, int64(500), result.Split.PlatformCents)
	assert.Equal(t, int64(375), result.Split.ReferrerCents)
	assert.Equal(t, int64(350), result.Split.CourierCents)

	assert.Equal(t, int64(500), f.balanceFor(t, enums.LedgerPartyKindPlatform, ledger.PlatformPartyID))
	assert.Equal(t, int64(375), f.balanceFor(t, enums.LedgerPartyKindReferrer, referrerID))
	assert.Equal(t, int64(350), f.balanceFor(t, enums.LedgerPartyKindCourier, courierID))
}

func TestSettlePlatformDirectAttribution(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{Kind: enums.AttributionKindPlatformDirect})
	require.NoError(t, err)

	order := f.deliverOrder(t, restaurantID, &courierID)

	result, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, int64(875), result.Split.PlatformCents)
	assert.Equal(t, int64(0), result.Split.ReferrerCents)
	assert.Equal(t, int64(875), f.balanceFor(t, enums.LedgerPartyKindPlatform, ledger.PlatformPartyID))

	var txns []models.LedgerTransaction
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Find(&txns).Error)
	assert.Len(t, txns, 2)
}

func TestSettleWithoutTrustRecordFallsBackToUnattributed(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	courierID := uuid.New()
	order := f.deliverOrder(t, uuid.New(), &courierID)

	result, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, int64(875), result.Split.PlatformCents)
	assert.Equal(t, int64(0), result.Split.ReferrerCents)
}

func TestSettleTwiceIsIdempotent(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{Kind: enums.AttributionKindPlatformDirect})
	require.NoError(t, err)

	order := f.deliverOrder(t, restaurantID, &courierID)

	first, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	assert.True(t, second.Replayed)

	assert.Equal(t, int64(875), f.balanceFor(t, enums.LedgerPartyKindPlatform, ledger.PlatformPartyID))

	var settleEntries int64
	require.NoError(t, f.conn.Model(&models.AuditEntry{}).
		Where("action = ?", enums.AuditActionOrderSettled).
		Count(&settleEntries).Error)
	assert.Equal(t, int64(1), settleEntries)

	// The delivered trust signal also fired exactly once.
	status, err := f.trustSvc.GetStatus(ctx, restaurantID)
	require.NoError(t, err)
	assert.Equal(t, int64(105), status.Record.PointBalance)
}

// staleOrdersRepo serves a configurable number of reads from before another
// settler flipped the flag, reproducing the window where two callers both
// load an unsettled order and race to mark it.
type staleOrdersRepo struct {
	orders.Repository
	staleReads int
}

func (r *staleOrdersRepo) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := r.Repository.GetByID(ctx, orderID)
	if err != nil || r.staleReads == 0 {
		return order, err
	}
	r.staleReads--
	order.Settled = false
	order.SettledAt = nil
	return order, nil
}

func TestSettleRaceLoserReplaysWithoutDoublePosting(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{Kind: enums.AttributionKindPlatformDirect})
	require.NoError(t, err)

	order := f.deliverOrder(t, restaurantID, &courierID)

	winner, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	require.False(t, winner.Replayed)

	// The loser read the order before the winner committed, so its copy
	// still looks unsettled and it proceeds all the way to the guarded
	// flag flip.
	calc, err := commission.NewCalculator(config.CommissionConfig{
		PerItemPlatformFeeCents:  100,
		PerItemReferrerRateCents: 75,
		CourierDeductionCents:    150,
	})
	require.NoError(t, err)
	loserRepo := &staleOrdersRepo{Repository: orders.NewRepository(f.conn), staleReads: 1}
	loserSvc, err := NewService(db.FromConn(f.conn), loserRepo, f.ledgerRepo, trust.NewRepository(f.conn), f.trustSvc, calc, f.auditSvc, nil, nil, nil, 3)
	require.NoError(t, err)

	loser, err := loserSvc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	assert.True(t, loser.Replayed)
	assert.True(t, loser.Order.Settled)

	var txns []models.LedgerTransaction
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Find(&txns).Error)
	assert.Len(t, txns, 2)

	var settleEntries int64
	require.NoError(t, f.conn.Model(&models.AuditEntry{}).
		Where("action = ?", enums.AuditActionOrderSettled).
		Count(&settleEntries).Error)
	assert.Equal(t, int64(1), settleEntries)
}

// unreachableTrustRepo fails every attribution read the way a dropped
// database connection would.
type unreachableTrustRepo struct {
	trust.Repository
}

func (r unreachableTrustRepo) Get(ctx context.Context, restaurantID uuid.UUID) (*models.TrustRecord, error) {
	return nil, fmt.Errorf("read trust_records: connection reset by peer")
}

func TestSettleFailsWhenAttributionReadErrors(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	referrerID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{
		Kind:       enums.AttributionKindSupervisorAdmin,
		ReferrerID: &referrerID,
	})
	require.NoError(t, err)

	order := f.deliverOrder(t, restaurantID, &courierID)

	calc, err := commission.NewCalculator(config.CommissionConfig{
		PerItemPlatformFeeCents:  100,
		PerItemReferrerRateCents: 75,
		CourierDeductionCents:    150,
	})
	require.NoError(t, err)
	brokenRepo := unreachableTrustRepo{Repository: trust.NewRepository(f.conn)}
	svc, err := NewService(db.FromConn(f.conn), orders.NewRepository(f.conn), f.ledgerRepo, brokenRepo, f.trustSvc, calc, f.auditSvc, nil, nil, nil, 3)
	require.NoError(t, err)

	// A transient read failure must not settle the order as unattributed:
	// the flag would block every retry and the referrer share would be
	// gone for good.
	_, err = svc.Settle(ctx, order.ID, audit.SystemActor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	got, err := f.ordersSvc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, got.Settled)

	var txnCount int64
	require.NoError(t, f.conn.Model(&models.LedgerTransaction{}).Count(&txnCount).Error)
	assert.Zero(t, txnCount)

	// The record is reachable again: the retry settles with the referrer
	// share intact.
	result, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	assert.Equal(t, int64(375), result.Split.ReferrerCents)
	assert.Equal(t, int64(375), f.balanceFor(t, enums.LedgerPartyKindReferrer, referrerID))
}

func TestSettlePreparingOrderRejectedWithNoWrites(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	order, err := f.ordersSvc.Create(ctx, orders.CreateOrderInput{
		RestaurantID:     uuid.New(),
		CustomerID:       uuid.New(),
		DeliveryFeeCents: 500,
		Items:            []orders.LineItemInput{{Name: "tea", UnitPriceCents: 300, Quantity: 1}},
	})
	require.NoError(t, err)

	actor := audit.Actor{ID: uuid.New(), Role: enums.ActorRoleOwner}
	for _, next := range []enums.OrderStatus{enums.OrderStatusAccepted, enums.OrderStatusPreparing} {
		_, err = f.ordersSvc.Transition(ctx, orders.TransitionInput{OrderID: order.ID, To: next, Actor: actor})
		require.NoError(t, err)
	}

	_, err = f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotSettleable))

	var txnCount int64
	require.NoError(t, f.conn.Model(&models.LedgerTransaction{}).Count(&txnCount).Error)
	assert.Zero(t, txnCount)

	got, err := f.ordersSvc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, got.Settled)
}

func TestSettleUnknownOrder(t *testing.T) {
	f := newSettlementFixture(t)

	_, err := f.svc.Settle(context.Background(), uuid.New(), audit.SystemActor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestSettleOrderWithoutCourierSkipsCourierPosting(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	order := f.deliverOrder(t, uuid.New(), nil)

	result, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
	require.NoError(t, err)
	require.False(t, result.Replayed)

	var txns []models.LedgerTransaction
	require.NoError(t, f.conn.Where("order_id = ?", order.ID).Find(&txns).Error)
	require.Len(t, txns, 1)
	assert.Equal(t, enums.LedgerTransactionKindPlatformFee, txns[0].Kind)
}

func TestDeliveredTransitionSettlesViaTrigger(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{Kind: enums.AttributionKindPlatformDirect})
	require.NoError(t, err)

	f.ordersSvc.SetSettler(NewTrigger(f.svc))
	order := f.deliverOrder(t, restaurantID, &courierID)

	// deliverOrder runs through the orders service, which now has the
	// trigger installed, so delivery settled the order.
	got, err := f.ordersSvc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Settled)
	assert.Equal(t, int64(875), f.balanceFor(t, enums.LedgerPartyKindPlatform, ledger.PlatformPartyID))
}

func TestReplayReconciliationMatchesLiveState(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	restaurantID := uuid.New()
	referrerID := uuid.New()
	courierID := uuid.New()
	_, err := f.trustSvc.CreateRecord(ctx, restaurantID, types.Attribution{
		Kind:       enums.AttributionKindSupervisorAdmin,
		ReferrerID: &referrerID,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		order := f.deliverOrder(t, restaurantID, &courierID)
		_, err := f.svc.Settle(ctx, order.ID, audit.SystemActor)
		require.NoError(t, err)
	}

	entries, err := f.auditSvc.CollectAll(ctx, audit.Filter{})
	require.NoError(t, err)
	state, err := audit.Replay(entries)
	require.NoError(t, err)

	accounts, err := f.ledgerRepo.ListAccounts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, accounts)
	for _, account := range accounts {
		assert.Equal(t, account.BalanceCents, state.Balances[account.ID], "account %s/%s", account.PartyKind, account.PartyID)
	}

	status, err := f.trustSvc.GetStatus(ctx, restaurantID)
	require.NoError(t, err)
	replayed := state.Trust[restaurantID]
	assert.Equal(t, status.Record.PointBalance, replayed.PointBalance)
	assert.Equal(t, status.Record.Suspended, replayed.Suspended)
}

package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/moodegoozy/sofra-core/internal/audit"
	"github.com/moodegoozy/sofra-core/internal/commission"
	"github.com/moodegoozy/sofra-core/internal/ledger"
	"github.com/moodegoozy/sofra-core/internal/orders"
	"github.com/moodegoozy/sofra-core/internal/settlement"
	"github.com/moodegoozy/sofra-core/internal/trust"
	"github.com/moodegoozy/sofra-core/pkg/db/models"
	"github.com/moodegoozy/sofra-core/pkg/enums"
	pkgerrors "github.com/moodegoozy/sofra-core/pkg/errors"
	"github.com/moodegoozy/sofra-core/pkg/logger"
	"github.com/moodegoozy/sofra-core/pkg/pagination"
	"github.com/moodegoozy/sofra-core/pkg/types"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type stubOrders struct {
	createInput     *orders.CreateOrderInput
	transitionInput *orders.TransitionInput
	order           *models.Order
	err             error
}

func (s *stubOrders) Create(_ context.Context, input orders.CreateOrderInput) (*models.Order, error) {
	s.createInput = &input
	return s.order, s.err
}

func (s *stubOrders) Get(context.Context, uuid.UUID) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) Transition(_ context.Context, input orders.TransitionInput) (*models.Order, error) {
	s.transitionInput = &input
	return s.order, s.err
}

func (s *stubOrders) SetSettler(orders.Settler) {}

type stubSettlement struct {
	result *settlement.Result
	err    error
	actor  audit.Actor
}

func (s *stubSettlement) Settle(_ context.Context, _ uuid.UUID, actor audit.Actor) (*settlement.Result, error) {
	s.actor = actor
	return s.result, s.err
}

type stubTrust struct {
	record      *models.TrustRecord
	status      *trust.Status
	events      []models.TrustEvent
	signalInput *trust.ApplySignalInput
	clearReason string
	err         error
}

func (s *stubTrust) CreateRecord(context.Context, uuid.UUID, types.Attribution) (*models.TrustRecord, error) {
	return s.record, s.err
}

func (s *stubTrust) ApplySignal(_ context.Context, input trust.ApplySignalInput) (*models.TrustRecord, error) {
	s.signalInput = &input
	return s.record, s.err
}

func (s *stubTrust) ClearSuspension(_ context.Context, _ uuid.UUID, _ audit.Actor, reason string) (*models.TrustRecord, error) {
	s.clearReason = reason
	return s.record, s.err
}

func (s *stubTrust) GetStatus(context.Context, uuid.UUID) (*trust.Status, error) {
	return s.status, s.err
}

func (s *stubTrust) ListEvents(context.Context, uuid.UUID) ([]models.TrustEvent, error) {
	return s.events, s.err
}

type stubLedger struct {
	account     *models.LedgerAccount
	txn         *models.LedgerTransaction
	txns        []models.LedgerTransaction
	adjustInput *ledger.AdjustInput
	err         error
}

func (s *stubLedger) GetBalance(context.Context, uuid.UUID) (*models.LedgerAccount, error) {
	return s.account, s.err
}

func (s *stubLedger) GetAccountByParty(context.Context, enums.LedgerPartyKind, uuid.UUID) (*models.LedgerAccount, error) {
	return s.account, s.err
}

func (s *stubLedger) ListTransactions(context.Context, uuid.UUID) ([]models.LedgerTransaction, error) {
	return s.txns, s.err
}

func (s *stubLedger) Adjust(_ context.Context, input ledger.AdjustInput) (*models.LedgerTransaction, error) {
	s.adjustInput = &input
	return s.txn, s.err
}

type stubAudit struct {
	filter audit.Filter
	params pagination.Params
	page   *audit.Page
	err    error
}

func (s *stubAudit) Record(context.Context, *gorm.DB, audit.RecordInput) (*models.AuditEntry, error) {
	return nil, nil
}

func (s *stubAudit) Query(_ context.Context, filter audit.Filter, params pagination.Params) (*audit.Page, error) {
	s.filter = filter
	s.params = params
	return s.page, s.err
}

func (s *stubAudit) CollectAll(context.Context, audit.Filter) ([]models.AuditEntry, error) {
	return nil, nil
}

func sampleOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		RestaurantID:  uuid.New(),
		CustomerID:    uuid.New(),
		Status:        enums.OrderStatusPending,
		SubtotalCents: 3600,
		TotalCents:    4100,
		Items: []models.OrderLineItem{
			{ID: uuid.New(), Name: "shawarma", UnitPriceCents: 900, Quantity: 4},
		},
	}
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target string, params map[string]string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	rc := chi.NewRouteContext()
	for key, value := range params {
		rc.URLParams.Add(key, value)
	}
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, into))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	svc := &stubOrders{order: sampleOrder()}
	body := map[string]any{
		"restaurant_id":      uuid.NewString(),
		"customer_id":        uuid.NewString(),
		"delivery_fee_cents": 500,
		"items": []map[string]any{
			{"name": "shawarma", "unit_price_cents": 900, "quantity": 4},
		},
	}

	rec := doRequest(t, CreateOrder(svc, testLogger()), http.MethodPost, "/api/v1/orders", nil, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.createInput)
	assert.Equal(t, int64(500), svc.createInput.DeliveryFeeCents)
	require.Len(t, svc.createInput.Items, 1)
	assert.Equal(t, "shawarma", svc.createInput.Items[0].Name)

	var resp orderResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(4100), resp.TotalCents)
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	svc := &stubOrders{order: sampleOrder()}
	body := map[string]any{
		"restaurant_id": uuid.NewString(),
		"customer_id":   uuid.NewString(),
		"items":         []map[string]any{},
	}

	rec := doRequest(t, CreateOrder(svc, testLogger()), http.MethodPost, "/api/v1/orders", nil, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	assert.Nil(t, svc.createInput)
}

func TestGetOrderRejectsMalformedID(t *testing.T) {
	svc := &stubOrders{order: sampleOrder()}
	rec := doRequest(t, GetOrder(svc, testLogger()), http.MethodGet, "/api/v1/orders/nope",
		map[string]string{"orderId": "nope"}, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrderMapsNotFound(t *testing.T) {
	svc := &stubOrders{err: pkgerrors.New(pkgerrors.CodeNotFound, "order not found")}
	rec := doRequest(t, GetOrder(svc, testLogger()), http.MethodGet, "/api/v1/orders/"+uuid.NewString(),
		map[string]string{"orderId": uuid.NewString()}, nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotFound), errorCode(t, rec))
}

func TestTransitionOrderPassesCourier(t *testing.T) {
	svc := &stubOrders{order: sampleOrder()}
	courierID := uuid.NewString()
	body := map[string]any{
		"to":         "out_for_delivery",
		"courier_id": courierID,
		"actor":      map[string]string{"id": uuid.NewString(), "role": "courier"},
	}

	rec := doRequest(t, TransitionOrder(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"orderId": uuid.NewString()}, body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.transitionInput)
	assert.Equal(t, enums.OrderStatusOutForDelivery, svc.transitionInput.To)
	require.NotNil(t, svc.transitionInput.CourierID)
	assert.Equal(t, courierID, svc.transitionInput.CourierID.String())
	assert.Equal(t, enums.ActorRoleCourier, svc.transitionInput.Actor.Role)
}

func TestTransitionOrderRejectsUnknownStatus(t *testing.T) {
	svc := &stubOrders{order: sampleOrder()}
	body := map[string]any{
		"to":    "teleported",
		"actor": map[string]string{"id": uuid.NewString(), "role": "owner"},
	}

	rec := doRequest(t, TransitionOrder(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"orderId": uuid.NewString()}, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.transitionInput)
}

func TestTransitionOrderMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeInvalidTransition, "pending -> delivered not allowed"), http.StatusUnprocessableEntity},
		{pkgerrors.New(pkgerrors.CodeOrderFinal, "order already final"), http.StatusUnprocessableEntity},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "lost the race"), http.StatusConflict},
	}
	for _, tc := range cases {
		svc := &stubOrders{err: tc.err}
		body := map[string]any{
			"to":    "accepted",
			"actor": map[string]string{"id": uuid.NewString(), "role": "owner"},
		}
		rec := doRequest(t, TransitionOrder(svc, testLogger()), http.MethodPost, "/x",
			map[string]string{"orderId": uuid.NewString()}, body)
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestSettleOrderReturnsSplit(t *testing.T) {
	order := sampleOrder()
	order.Status = enums.OrderStatusDelivered
	svc := &stubSettlement{result: &settlement.Result{
		Order: order,
		Split: commission.Split{PlatformCents: 500, ReferrerCents: 375, CourierCents: 350},
	}}
	body := map[string]any{"actor": map[string]string{"id": uuid.NewString(), "role": "admin"}}

	rec := doRequest(t, SettleOrder(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"orderId": uuid.NewString()}, body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.ActorRoleAdmin, svc.actor.Role)

	var resp settlementResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(500), resp.Split.PlatformCents)
	assert.Equal(t, int64(375), resp.Split.ReferrerCents)
	assert.False(t, resp.Replayed)
}

func TestSettleOrderMapsNotSettleable(t *testing.T) {
	svc := &stubSettlement{err: pkgerrors.New(pkgerrors.CodeNotSettleable, "order must be delivered")}
	body := map[string]any{"actor": map[string]string{"id": uuid.NewString(), "role": "admin"}}

	rec := doRequest(t, SettleOrder(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"orderId": uuid.NewString()}, body)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeNotSettleable), errorCode(t, rec))
}

func TestApplyTrustSignalParsesInput(t *testing.T) {
	restaurantID := uuid.New()
	svc := &stubTrust{record: &models.TrustRecord{RestaurantID: restaurantID, PointBalance: 70}}
	orderID := uuid.NewString()
	body := map[string]any{
		"signal":   "customer_complaint",
		"order_id": orderID,
		"actor":    map[string]string{"id": uuid.NewString(), "role": "admin"},
	}

	rec := doRequest(t, ApplyTrustSignal(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"restaurantId": restaurantID.String()}, body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.signalInput)
	assert.Equal(t, enums.TrustSignalCustomerComplaint, svc.signalInput.Signal)
	require.NotNil(t, svc.signalInput.OrderID)
	assert.Equal(t, orderID, svc.signalInput.OrderID.String())
}

func TestApplyTrustSignalRejectsUnknownSignal(t *testing.T) {
	svc := &stubTrust{}
	body := map[string]any{
		"signal": "vibes",
		"actor":  map[string]string{"id": uuid.NewString(), "role": "admin"},
	}

	rec := doRequest(t, ApplyTrustSignal(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"restaurantId": uuid.NewString()}, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.signalInput)
}

func TestClearSuspensionRequiresReason(t *testing.T) {
	svc := &stubTrust{record: &models.TrustRecord{RestaurantID: uuid.New()}}
	body := map[string]any{
		"actor": map[string]string{"id": uuid.NewString(), "role": "admin"},
	}

	rec := doRequest(t, ClearSuspension(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"restaurantId": uuid.NewString()}, body)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.clearReason)
}

func TestClearSuspensionPassesReason(t *testing.T) {
	svc := &stubTrust{record: &models.TrustRecord{RestaurantID: uuid.New()}}
	body := map[string]any{
		"reason": "  remediation plan accepted  ",
		"actor":  map[string]string{"id": uuid.NewString(), "role": "admin"},
	}

	rec := doRequest(t, ClearSuspension(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"restaurantId": uuid.NewString()}, body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "remediation plan accepted", svc.clearReason)
}

func TestGetTrustStatusReturnsDerivedStatus(t *testing.T) {
	restaurantID := uuid.New()
	svc := &stubTrust{status: &trust.Status{
		Record: &models.TrustRecord{RestaurantID: restaurantID, PointBalance: 30, Suspended: false},
		Status: enums.TrustStatusWarned,
	}}

	rec := doRequest(t, GetTrustStatus(svc, testLogger()), http.MethodGet, "/x",
		map[string]string{"restaurantId": restaurantID.String()}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp trustStatusResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, enums.TrustStatusWarned, resp.Status)
	assert.Equal(t, int64(30), resp.Record.PointBalance)
}

func TestAdjustLedgerReturnsCreated(t *testing.T) {
	accountID := uuid.New()
	svc := &stubLedger{txn: &models.LedgerTransaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Kind:        enums.LedgerTransactionKindManualAdjustment,
		AmountCents: -250,
	}}
	body := map[string]any{
		"amount_cents": -250,
		"reason":       "refund correction",
		"actor":        map[string]string{"id": uuid.NewString(), "role": "admin"},
	}

	rec := doRequest(t, AdjustLedger(svc, testLogger()), http.MethodPost, "/x",
		map[string]string{"accountId": accountID.String()}, body)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, svc.adjustInput)
	assert.Equal(t, int64(-250), svc.adjustInput.AmountCents)
	assert.Equal(t, "refund correction", svc.adjustInput.Reason)
}

func TestFindLedgerAccountValidatesPartyKind(t *testing.T) {
	svc := &stubLedger{account: &models.LedgerAccount{ID: uuid.New()}}

	rec := doRequest(t, FindLedgerAccount(svc, testLogger()), http.MethodGet,
		fmt.Sprintf("/x?party_kind=alien&party_id=%s", uuid.NewString()), nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, FindLedgerAccount(svc, testLogger()), http.MethodGet,
		fmt.Sprintf("/x?party_kind=courier&party_id=%s", uuid.NewString()), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListAuditBuildsFilter(t *testing.T) {
	svc := &stubAudit{page: &audit.Page{Entries: []models.AuditEntry{}, NextCursor: "next"}}
	targetID := uuid.NewString()

	rec := doRequest(t, ListAudit(svc, testLogger()), http.MethodGet,
		fmt.Sprintf("/x?action=order_settled&target_type=order&target_id=%s&limit=10", targetID), nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, enums.AuditActionOrderSettled, svc.filter.Action)
	assert.Equal(t, enums.AuditTargetOrder, svc.filter.TargetType)
	assert.Equal(t, targetID, svc.filter.TargetID.String())
	assert.Equal(t, 10, svc.params.Limit)

	var resp auditPageResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "next", resp.NextCursor)
}

func TestListAuditRejectsUnknownAction(t *testing.T) {
	svc := &stubAudit{page: &audit.Page{}}
	rec := doRequest(t, ListAudit(svc, testLogger()), http.MethodGet, "/x?action=mystery", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

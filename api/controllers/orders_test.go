package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danmarrec/storelane-backend/api/middleware"
	"github.com/danmarrec/storelane-backend/internal/orders"
	"github.com/danmarrec/storelane-backend/pkg/db/models"
	"github.com/danmarrec/storelane-backend/pkg/enums"
	pkgerrors "github.com/danmarrec/storelane-backend/pkg/errors"
	"github.com/danmarrec/storelane-backend/pkg/logger"
	"github.com/danmarrec/storelane-backend/pkg/types"
)

type stubOrdersService struct {
	create func(ctx context.Context, userID uuid.UUID, input orders.CreateOrderInput) (*models.Order, error)
	get    func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	list   func(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	cancel func(ctx context.Context, userID, orderID uuid.UUID) error
}

func (s *stubOrdersService) Create(ctx context.Context, userID uuid.UUID, input orders.CreateOrderInput) (*models.Order, error) {
	if s.create != nil {
		return s.create(ctx, userID, input)
	}
	return nil, nil
}

func (s *stubOrdersService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if s.get != nil {
		return s.get(ctx, userID, orderID)
	}
	return nil, nil
}

func (s *stubOrdersService) List(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if s.list != nil {
		return s.list(ctx, userID)
	}
	return nil, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, userID, orderID uuid.UUID) error {
	if s.cancel != nil {
		return s.cancel(ctx, userID, orderID)
	}
	return nil
}

func controllerTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "controllers-test", Output: io.Discard})
}

func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func withOrderParam(req *http.Request, orderID uuid.UUID) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", orderID.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestOrderCreateReturnsSnapshot(t *testing.T) {
	userID := uuid.New()
	productID := uuid.New()
	created := &models.Order{
		ID:            uuid.New(),
		UserID:        userID,
		OrderKey:      uuid.NewString(),
		Status:        enums.OrderStatusPending,
		RecipientName: "Dana",
		TotalCents:    2500,
		Items: []models.OrderItem{
			{ID: uuid.New(), ProductID: productID, Name: "Field Notebook", PriceCents: 1250, Quantity: 2},
		},
	}
	svc := &stubOrdersService{
		create: func(ctx context.Context, gotUser uuid.UUID, input orders.CreateOrderInput) (*models.Order, error) {
			if gotUser != userID {
				t.Fatalf("unexpected user id %s", gotUser)
			}
			if len(input.Items) != 1 || input.Items[0].Quantity != 2 {
				t.Fatalf("unexpected input items %+v", input.Items)
			}
			return created, nil
		},
	}
	handler := OrderCreate(svc, controllerTestLogger())

	body := `{"address_id":"` + uuid.NewString() + `","items":[{"product_id":"` + productID.String() + `","quantity":2}]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body)), userID)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data orders.OrderResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ID != created.ID {
		t.Fatalf("expected order id %s, got %s", created.ID, envelope.Data.ID)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.Items[0].Name != "Field Notebook" {
		t.Fatalf("expected snapshotted item in response, got %+v", envelope.Data.Items)
	}
}

func TestOrderCreateRejectsMalformedBody(t *testing.T) {
	handler := OrderCreate(&stubOrdersService{}, controllerTestLogger())

	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"items":`)), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestOrderCreateRequiresUserContext(t *testing.T) {
	handler := OrderCreate(&stubOrdersService{}, controllerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without user context, got %d", rec.Code)
	}
}

func TestOrderDetailPassesThroughNotFound(t *testing.T) {
	svc := &stubOrdersService{
		get: func(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		},
	}
	handler := OrderDetail(svc, controllerTestLogger())

	req := withOrderParam(withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/x", nil), uuid.New()), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND code, got %s", envelope.Error.Code)
	}
}

func TestOrderDetailRejectsBadID(t *testing.T) {
	handler := OrderDetail(&stubOrdersService{}, controllerTestLogger())

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", "not-a-uuid")
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/not-a-uuid", nil), uuid.New())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad order id, got %d", rec.Code)
	}
}

func TestOrderCancelConflictPassesThrough(t *testing.T) {
	svc := &stubOrdersService{
		cancel: func(ctx context.Context, userID, orderID uuid.UUID) error {
			return pkgerrors.New(pkgerrors.CodeConflict, "only pending orders can be cancelled")
		},
	}
	handler := OrderCancel(svc, controllerTestLogger())

	req := withOrderParam(withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/cancel", nil), uuid.New()), uuid.New())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestOrderListReturnsNewestFirstAsGiven(t *testing.T) {
	userID := uuid.New()
	svc := &stubOrdersService{
		list: func(ctx context.Context, gotUser uuid.UUID) ([]models.Order, error) {
			return []models.Order{
				{ID: uuid.New(), OrderKey: "newest"},
				{ID: uuid.New(), OrderKey: "older"},
			}, nil
		},
	}
	handler := OrderList(svc, controllerTestLogger())

	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil), userID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var envelope struct {
		Data []orders.OrderResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data) != 2 || envelope.Data[0].OrderKey != "newest" {
		t.Fatalf("expected order preserved, got %+v", envelope.Data)
	}
}

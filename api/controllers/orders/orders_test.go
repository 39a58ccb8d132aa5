package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	internalorders "github.com/adhamfarouk/pillcart-backend/internal/orders"
	"github.com/adhamfarouk/pillcart-backend/internal/pricing"
	"github.com/adhamfarouk/pillcart-backend/pkg/db/models"
	"github.com/adhamfarouk/pillcart-backend/pkg/enums"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/types"
)

type fakeOrdersService struct {
	internalorders.Service

	order     *models.Order
	quote     *pricing.Breakdown
	checkouts int
}

func (f *fakeOrdersService) InitiateCheckout(ctx context.Context, input internalorders.CheckoutInput) (*models.Order, error) {
	f.checkouts++
	return f.order, nil
}

func (f *fakeOrdersService) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	if f.order == nil || f.order.OrderNumber != orderNumber {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return f.order, nil
}

func (f *fakeOrdersService) Quote(ctx context.Context, orderID uuid.UUID) (*pricing.Breakdown, error) {
	return f.quote, nil
}

func (f *fakeOrdersService) SetAddress(ctx context.Context, orderID uuid.UUID, address types.Address) (*models.Order, error) {
	f.order.ShippingAddress = &address
	f.order.Status = enums.OrderStatusWaiting
	return f.order, nil
}

func newOrderRequest(t *testing.T, method, target, orderNumber string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderNumber", orderNumber)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	svc := &fakeOrdersService{
		order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "PC-AB12CD34EF",
			Status:      enums.OrderStatusInitiated,
		},
	}
	handler := Checkout(svc, nil)

	body := map[string]any{
		"items": []map[string]any{
			{"product_id": uuid.NewString(), "qty": 2},
		},
	}
	req := newOrderRequest(t, http.MethodPost, "/api/v1/checkout", "", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.checkouts != 1 {
		t.Fatalf("expected one checkout call, got %d", svc.checkouts)
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	t.Parallel()

	svc := &fakeOrdersService{}
	handler := Checkout(svc, nil)

	req := newOrderRequest(t, http.MethodPost, "/api/v1/checkout", "", map[string]any{"items": []any{}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.checkouts != 0 {
		t.Fatalf("service should not be called for an empty cart")
	}
}

func TestDetailIncludesQuote(t *testing.T) {
	t.Parallel()

	svc := &fakeOrdersService{
		order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "PC-AB12CD34EF",
			Status:      enums.OrderStatusWaiting,
		},
		quote: &pricing.Breakdown{
			SubtotalCents: 1000,
			TotalCents:    1050,
		},
	}
	handler := Detail(svc, nil)

	req := newOrderRequest(t, http.MethodGet, "/api/v1/orders/PC-AB12CD34EF", "PC-AB12CD34EF", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			Quote pricing.Breakdown `json:"quote"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Quote.TotalCents != 1050 {
		t.Fatalf("expected quote total 1050, got %d", resp.Data.Quote.TotalCents)
	}
}

func TestDetailNotFound(t *testing.T) {
	t.Parallel()

	svc := &fakeOrdersService{}
	handler := Detail(svc, nil)

	req := newOrderRequest(t, http.MethodGet, "/api/v1/orders/PC-MISSING", "PC-MISSING", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSetAddress(t *testing.T) {
	t.Parallel()

	svc := &fakeOrdersService{
		order: &models.Order{
			ID:          uuid.New(),
			OrderNumber: "PC-AB12CD34EF",
			Status:      enums.OrderStatusInitiated,
		},
	}
	handler := SetAddress(svc, nil)

	body := map[string]any{
		"address": map[string]any{
			"line1":  "12 Nile St",
			"city":   "Cairo",
			"region": "Cairo",
			"phone":  "+201000000000",
			"name":   "A. Customer",
		},
	}
	req := newOrderRequest(t, http.MethodPut, "/api/v1/orders/PC-AB12CD34EF/address", "PC-AB12CD34EF", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.order.Status != enums.OrderStatusWaiting {
		t.Fatalf("expected order to move to waiting, got %s", svc.order.Status)
	}
}

package shipblu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/adhamfarouk/pillcart-backend/pkg/config"
	pkgerrors "github.com/adhamfarouk/pillcart-backend/pkg/errors"
	"github.com/adhamfarouk/pillcart-backend/pkg/logger"
)

func newTestServer(t *testing.T, tokenCalls *int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			atomic.AddInt64(tokenCalls, 1)
			if err := r.ParseForm(); err != nil || r.Form.Get("grant_type") != "refresh_token" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 3600})
		case "/v1/orders":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			if r.Header.Get("Idempotency-Key") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(OrderResponse{ProviderOrderID: "sb_9", OrderNumber: "SB-0009"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client, err := NewClient(context.Background(), config.ShipbluConfig{
		BaseURL:       baseURL,
		RefreshToken:  "refresh",
		WebhookSecret: "secret",
		StoreName:     "pillcart",
		Timeout:       2 * time.Second,
	}, logg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestCreateOrderAuthenticatesAndCachesToken(t *testing.T) {
	t.Parallel()

	var tokenCalls int64
	srv := newTestServer(t, &tokenCalls)
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	for i := 0; i < 3; i++ {
		created, err := client.CreateOrder(context.Background(), "PB-1-1724800000", OrderRequest{
			MerchantReference: "PB-1",
			CustomerName:      "A Customer",
			Region:            "cairo",
		})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if created.ProviderOrderID != "sb_9" || created.OrderNumber != "SB-0009" {
			t.Fatalf("unexpected response %+v", created)
		}
	}

	if got := atomic.LoadInt64(&tokenCalls); got != 1 {
		t.Fatalf("expected a single token fetch, got %d", got)
	}
}

func TestCreateOrderRequiresIdempotencyKey(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "http://localhost:0")
	_, err := client.CreateOrder(context.Background(), "", OrderRequest{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateOrderProviderDown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.CreateOrder(context.Background(), "key", OrderRequest{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeProviderUnavailable) {
		t.Fatalf("expected provider unavailable, got %v", err)
	}
}

func TestDefaultStoreApplied(t *testing.T) {
	t.Parallel()

	var gotStore string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok", ExpiresIn: 3600})
			return
		}
		var req OrderRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotStore = req.Store
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(OrderResponse{ProviderOrderID: "sb_1"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if _, err := client.CreateOrder(context.Background(), "key", OrderRequest{}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if gotStore != "pillcart" {
		t.Fatalf("expected default store, got %q", gotStore)
	}
}

package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fjod/cafe_cart/domain"
	"github.com/fjod/cafe_cart/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		CustomerName:   "Ada",
		Items:          []domain.CheckoutItem{{MenuItemID: 1, Qty: 2}},
		IdempotencyKey: "key-1",
	}
}

func TestHTTPOrderClient_Success(t *testing.T) {
	var (
		gotBody   map[string]any
		gotKey    string
		gotMethod string
		gotPath   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get("Idempotency-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_id":"A1","status":"pending","payment_url":"https://pay.example/1"}`))
	}))
	defer srv.Close()

	client := NewHTTPOrderClient(srv.URL+"/", srv.Client(), nil)
	result, err := client.PlaceOrder(context.Background(), orderRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.CheckoutResult{OrderID: "A1", Status: "pending", PaymentURL: "https://pay.example/1"}, result)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/cart/checkout", gotPath)
	assert.Equal(t, "key-1", gotKey)
	assert.Equal(t, "Ada", gotBody["customer_name"])
	assert.NotContains(t, gotBody, "customer_email")
	items, ok := gotBody["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, map[string]any{"menu_item_id": float64(1), "qty": float64(2)}, items[0])
}

func TestHTTPOrderClient_NumericOrderID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"order_id":12345}`))
	}))
	defer srv.Close()

	result, err := NewHTTPOrderClient(srv.URL, srv.Client(), nil).PlaceOrder(context.Background(), orderRequest())
	require.NoError(t, err)
	assert.Equal(t, "12345", result.OrderID)
}

func TestHTTPOrderClient_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"server message verbatim", http.StatusBadRequest, `{"error":"item unavailable"}`, "item unavailable"},
		{"empty error message", http.StatusConflict, `{"error":""}`, "checkout failed"},
		{"non json error", http.StatusInternalServerError, `<html>oops</html>`, "checkout failed"},
		{"malformed success", http.StatusOK, `not json`, "checkout failed"},
		{"success without order id", http.StatusOK, `{"status":"pending"}`, "checkout failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPOrderClient(srv.URL, srv.Client(), nil).PlaceOrder(context.Background(), orderRequest())

			var rejected *RejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.status, rejected.StatusCode)
			assert.Equal(t, tt.message, rejected.Message)
		})
	}
}

func TestHTTPOrderClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPOrderClient(url, nil, nil).PlaceOrder(context.Background(), orderRequest())

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.NotNil(t, transport.Unwrap())
}

func TestHTTPOrderClient_BreakerOpensOnTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	client := NewHTTPOrderClient(url, nil, nil)

	for i := 0; i < circuitbreaker.DefaultFailureThreshold; i++ {
		_, err := client.PlaceOrder(context.Background(), orderRequest())
		require.Error(t, err)
		assert.False(t, circuitbreaker.IsOpen(err))
	}

	_, err := client.PlaceOrder(context.Background(), orderRequest())
	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.True(t, circuitbreaker.IsOpen(err))
}

func TestHTTPOrderClient_RejectionsKeepBreakerClosed(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"item unavailable"}`))
	}))
	defer srv.Close()
	client := NewHTTPOrderClient(srv.URL, srv.Client(), nil)

	for i := 0; i < circuitbreaker.DefaultFailureThreshold+2; i++ {
		_, err := client.PlaceOrder(context.Background(), orderRequest())
		var rejected *RejectedError
		require.ErrorAs(t, err, &rejected)
	}
	assert.Equal(t, int32(circuitbreaker.DefaultFailureThreshold+2), hits.Load())
}

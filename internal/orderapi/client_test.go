package orderapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kicksvault/storefront/internal/config"
	"github.com/kicksvault/storefront/internal/domain"
	apperrors "github.com/kicksvault/storefront/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.OrderAPIConfig{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second}, zap.NewNop())
}

func TestCreateOrder(t *testing.T) {
	requestID := uuid.New()
	orderID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, requestID.String(), r.Header.Get("Idempotency-Key"))

		var body CreateOrderRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, domain.OrderStatusPending, body.Status)
		assert.Equal(t, int64(1_030_000), body.TotalAmount)
		if assert.Len(t, body.Items, 1) {
			assert.Equal(t, domain.ProductID("9"), body.Items[0].ProductID)
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(domain.Order{ID: orderID, Status: domain.OrderStatusPending})
	})

	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		RequestID:   requestID,
		Items:       []domain.OrderItem{{ProductID: "9", Price: 1_000_000, Quantity: 1}},
		TotalAmount: 1_030_000,
		Status:      domain.OrderStatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, orderID, order.ID)
}

func TestCreateOrderSurfacesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "Sản phẩm đã hết hàng"}`))
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{RequestID: uuid.New()})

	var placement *apperrors.ErrOrderPlacement
	require.True(t, errors.As(err, &placement))
	assert.Equal(t, http.StatusBadRequest, placement.StatusCode)
	assert.Equal(t, "Sản phẩm đã hết hàng", err.Error())
}

func TestCreateOrderFallsBackToErrorField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "database unavailable"}`))
	})

	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{RequestID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, "database unavailable", err.Error())
}

func TestCancelAndGetOrder(t *testing.T) {
	orderID := uuid.New()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/orders/"+orderID.String()+"/cancel":
			var body CancelOrderRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "changed my mind", body.CancelReason)
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/orders/"+orderID.String():
			_ = json.NewEncoder(w).Encode(domain.Order{ID: orderID, Status: domain.OrderStatusDelivered})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	require.NoError(t, client.CancelOrder(context.Background(), orderID, "changed my mind"))

	order, err := client.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, order.Status)
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	client := NewClient(config.OrderAPIConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, zap.NewNop())
	_, err := client.GetOrder(context.Background(), uuid.New())

	var upstream *apperrors.ErrUpstream
	require.True(t, errors.As(err, &upstream))
	assert.Zero(t, upstream.StatusCode)

	var placement *apperrors.ErrOrderPlacement
	assert.False(t, errors.As(err, &placement))
}

func TestLookupErrorsAreNotPlacementErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "order not found"}`))
	})
	orderID := uuid.New()

	_, err := client.GetOrder(context.Background(), orderID)
	var notFound *apperrors.ErrNotFound
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, orderID.String(), notFound.ID)

	err = client.CancelOrder(context.Background(), orderID, "too slow")
	assert.True(t, errors.As(err, &notFound))

	var placement *apperrors.ErrOrderPlacement
	assert.False(t, errors.As(err, &placement))
}

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCashfree_CreateOrder(t *testing.T) {
	var got createOrderBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pg/orders", r.URL.Path)
		assert.Equal(t, "app", r.Header.Get("x-client-id"))
		assert.Equal(t, "sec", r.Header.Get("x-client-secret"))
		assert.Equal(t, DefaultAPIVersion, r.Header.Get("x-api-version"))
		assert.NotEmpty(t, r.Header.Get("x-request-id"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"cf_order_id":"2149460581","order_id":"ORD_1","payment_session_id":"sess","order_status":"ACTIVE"}`))
	}))
	defer srv.Close()

	c := NewCashfree(CashfreeConfig{BaseURL: srv.URL + "/pg/", AppID: "app", Secret: "sec"}, nil, nil)
	order, err := c.CreateOrder(context.Background(), OrderRequest{
		OrderID:       "ORD_1",
		AmountInPaise: 50000,
		Currency:      "INR",
		CustomerID:    "u1",
	})
	require.NoError(t, err)

	assert.Equal(t, "ORD_1", order.OrderID)
	assert.Equal(t, "2149460581", order.GatewayOrderID)
	assert.Equal(t, "sess", order.PaymentSessionID)

	assert.Equal(t, 500.0, got.OrderAmount)
	assert.Equal(t, "INR", got.OrderCurrency)
	assert.Equal(t, "u1", got.CustomerDetails.CustomerID)
	assert.Equal(t, "0000000000", got.CustomerDetails.CustomerPhone)
	assert.Nil(t, got.OrderMeta)
}

func TestCashfree_FetchOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/ORD_paid":
			_, _ = w.Write([]byte(`{"order_id":"ORD_paid","order_status":"PAID"}`))
		case "/orders/ORD_missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"authentication Failed","code":"request_failed","type":"authentication_error"}`))
		}
	}))
	defer srv.Close()
	c := NewCashfree(CashfreeConfig{BaseURL: srv.URL}, nil, nil)
	ctx := context.Background()

	status, err := c.FetchOrderStatus(ctx, "ORD_paid")
	require.NoError(t, err)
	assert.Equal(t, "PAID", status)

	_, err = c.FetchOrderStatus(ctx, "ORD_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = c.FetchOrderStatus(ctx, "ORD_other")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "request_failed", se.Code)
}

func TestFake(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, err := f.FetchOrderStatus(ctx, "ORD_x")
	assert.ErrorIs(t, err, ErrOrderNotFound)

	o, err := f.CreateOrder(ctx, OrderRequest{OrderID: "ORD_x", AmountInPaise: 100})
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", o.Status)

	f.SetStatus("ORD_x", "PAID")
	s, err := f.FetchOrderStatus(ctx, "ORD_x")
	require.NoError(t, err)
	assert.Equal(t, "PAID", s)

	f.CreateErr = errors.New("down")
	_, err = f.CreateOrder(ctx, OrderRequest{OrderID: "ORD_y"})
	assert.Error(t, err)
}

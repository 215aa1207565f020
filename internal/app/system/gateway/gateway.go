// Package gateway talks to the payment provider. Client is the narrow
// surface the ledger depends on; Cashfree is the production implementation.
package gateway

import (
	"context"
	"errors"
)

// ErrOrderNotFound is returned when the provider has no such order.
var ErrOrderNotFound = errors.New("gateway: order not found")

// OrderRequest opens a checkout for one payment intent.
type OrderRequest struct {
	OrderID       string
	AmountInPaise int64
	Currency      string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	ReturnURL     string
	NotifyURL     string
}

// Order is the provider's view of a created order.
type Order struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"cf_order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	Status           string `json:"order_status"`
}

// Client is what the ledger needs from a provider.
type Client interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrderStatus(ctx context.Context, orderID string) (string, error)
}

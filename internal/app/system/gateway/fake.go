package gateway

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for tests and local development without
// provider credentials. Orders start ACTIVE; SetStatus moves them.
type Fake struct {
	mu       sync.Mutex
	orders   map[string]OrderRequest
	statuses map[string]string

	// CreateErr, when set, fails every CreateOrder.
	CreateErr error
}

func NewFake() *Fake {
	return &Fake{orders: map[string]OrderRequest{}, statuses: map[string]string{}}
}

func (f *Fake) CreateOrder(_ context.Context, req OrderRequest) (*Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.orders[req.OrderID] = req
	if _, ok := f.statuses[req.OrderID]; !ok {
		f.statuses[req.OrderID] = "ACTIVE"
	}
	return &Order{
		OrderID:          req.OrderID,
		GatewayOrderID:   "cf_" + req.OrderID,
		PaymentSessionID: "session_" + req.OrderID,
		Status:           f.statuses[req.OrderID],
	}, nil
}

func (f *Fake) FetchOrderStatus(_ context.Context, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.statuses[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return s, nil
}

// SetStatus sets the status FetchOrderStatus reports for orderID.
func (f *Fake) SetStatus(orderID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[orderID] = status
}

// Order returns the request an order was created with.
func (f *Fake) Order(orderID string) (OrderRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.orders[orderID]
	return r, ok
}

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Cashfree PG endpoints.
const (
	CashfreeSandboxURL    = "https://sandbox.cashfree.com/pg"
	CashfreeProductionURL = "https://api.cashfree.com/pg"
	DefaultAPIVersion     = "2023-08-01"
)

// CashfreeConfig configures the Cashfree client.
type CashfreeConfig struct {
	BaseURL    string
	AppID      string
	Secret     string
	APIVersion string
	Timeout    time.Duration
}

// Cashfree is a Client for the Cashfree PG orders API.
type Cashfree struct {
	cfg        CashfreeConfig
	httpClient *http.Client
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func NewCashfree(cfg CashfreeConfig, m *metrics.Metrics, log *zap.Logger) *Cashfree {
	if cfg.BaseURL == "" {
		cfg.BaseURL = CashfreeSandboxURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cashfree{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
		log:        log,
	}
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

type createOrderBody struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     float64         `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
	OrderMeta       *orderMeta      `json:"order_meta,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

// StatusError is a non-2xx answer from the provider.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cashfree: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// CreateOrder opens an order for req. Amounts go to the provider in rupees.
func (c *Cashfree) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := createOrderBody{
		OrderID:       req.OrderID,
		OrderAmount:   float64(req.AmountInPaise) / 100,
		OrderCurrency: req.Currency,
		CustomerDetails: customerDetails{
			CustomerID:    req.CustomerID,
			CustomerName:  req.CustomerName,
			CustomerEmail: orDefault(req.CustomerEmail, "na@example.com"),
			CustomerPhone: orDefault(req.CustomerPhone, "0000000000"),
		},
	}
	if req.ReturnURL != "" || req.NotifyURL != "" {
		body.OrderMeta = &orderMeta{ReturnURL: req.ReturnURL, NotifyURL: req.NotifyURL}
	}

	var out Order
	if err := c.call(ctx, "create_order", http.MethodPost, "/orders", body, &out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		out.OrderID = req.OrderID
	}
	return &out, nil
}

// FetchOrderStatus returns the provider's order_status for orderID
// (ACTIVE, PAID, EXPIRED, TERMINATED, ...).
func (c *Cashfree) FetchOrderStatus(ctx context.Context, orderID string) (string, error) {
	var out Order
	if err := c.call(ctx, "fetch_order", http.MethodGet, "/orders/"+orderID, nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *Cashfree) call(ctx context.Context, op, method, path string, payload, into any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		c.metrics.ObserveGateway(op, result, time.Since(start).Seconds())
	}()

	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.Secret)
	req.Header.Set("x-api-version", c.cfg.APIVersion)
	req.Header.Set("x-request-id", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.Unmarshal(data, &ae)
		c.log.Warn("cashfree request failed",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", ae.Code))
		return &StatusError{StatusCode: resp.StatusCode, Code: ae.Code, Message: ae.Message}
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

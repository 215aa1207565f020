// Package ledger records payment intents and reconciles them against what
// the payment provider reports, whether pushed by webhook or pulled by the
// poller. A payment that reaches success or failed never changes again.
package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	paymentstore "github.com/dalemusser/teamreg/internal/app/store/payments"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/gateway"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/sentinel"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Payments interface {
	Create(ctx context.Context, p models.Payment) (models.Payment, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	LatestForPayer(ctx context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error)
	OpenForPayer(ctx context.Context, payerID primitive.ObjectID, mode string) (*models.Payment, error)
	MarkPending(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ApplyStatus(ctx context.Context, orderID string, u paymentstore.StatusUpdate) (*models.Payment, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int64) ([]models.Payment, error)
}

type Users interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// TeamLocker flags a team once its fee is paid.
type TeamLocker interface {
	LockTeam(ctx context.Context, teamID primitive.ObjectID) error
}

// Outcome says what a reconciliation did.
type Outcome string

const (
	Applied         Outcome = "applied"
	UnknownOrder    Outcome = "unknown_order"
	AlreadyTerminal Outcome = "already_terminal"
	Malformed       Outcome = "malformed"
	Throttled       Outcome = "throttled"
	Errored         Outcome = "error"
)

// Notification is a provider status report for one order.
type Notification struct {
	OrderID     string
	Status      string
	PaymentID   string
	ReferenceID string
}

// Config holds provider-facing settings.
type Config struct {
	ReturnURL string
	NotifyURL string
}

type Service struct {
	payments Payments
	users    Users
	locker   TeamLocker
	gw       gateway.Client
	cfg      Config
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func New(payments Payments, users Users, locker TeamLocker, gw gateway.Client, cfg Config, m *metrics.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{payments: payments, users: users, locker: locker, gw: gw, cfg: cfg, metrics: m, log: log}
}

// OrderIDFor is the gateway order id of a payment.
func OrderIDFor(paymentID primitive.ObjectID) string {
	return "ORD_" + paymentID.Hex()
}

// CreateIntent records a new payment in status created. When the payer
// already has an open payment of mode, that payment is returned instead.
func (s *Service) CreateIntent(ctx context.Context, payer primitive.ObjectID, amountInPaise int64, mode string, teamID *primitive.ObjectID) (*models.Payment, error) {
	if amountInPaise <= 0 {
		return nil, apperr.Validation("Amount must be positive.")
	}
	if mode != models.ModeTeam && mode != models.ModeIndividual {
		return nil, apperr.Validation(`Mode must be "team" or "individual".`)
	}
	for attempt := 0; ; attempt++ {
		id := primitive.NewObjectID()
		p, err := s.payments.Create(ctx, models.Payment{
			ID:             id,
			PayerID:        payer,
			TeamID:         teamID,
			AmountInPaise:  amountInPaise,
			Currency:       models.CurrencyINR,
			Status:         models.PaymentCreated,
			Mode:           mode,
			GatewayOrderID: OrderIDFor(id),
		})
		if err == nil {
			return &p, nil
		}
		if !errors.Is(err, sentinel.ErrDuplicate) {
			return nil, apperr.Internal("create payment", err)
		}
		open, oerr := s.payments.OpenForPayer(ctx, payer, mode)
		if oerr == nil {
			return open, nil
		}
		// the open payment settled between the two calls; try once more
		if !errors.Is(oerr, sentinel.ErrNotFound) || attempt > 0 {
			return nil, apperr.Internal("create payment", err)
		}
	}
}

// Get loads a payment.
func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrPaymentNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load payment", err)
	}
	return p, nil
}

// Latest returns payer's newest payment of mode, or ErrPaymentNotFound.
func (s *Service) Latest(ctx context.Context, payer primitive.ObjectID, mode string) (*models.Payment, error) {
	p, err := s.payments.LatestForPayer(ctx, payer, mode)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, apperr.ErrPaymentNotFound
	}
	if err != nil {
		return nil, apperr.Internal("load payment", err)
	}
	return p, nil
}

// Checkout is what a client needs to open the provider's payment page.
type Checkout struct {
	Payment          *models.Payment `json:"payment"`
	OrderID          string          `json:"order_id"`
	PaymentSessionID string          `json:"payment_session_id"`
}

// StartCheckout opens a provider order for paymentID. A provider failure
// leaves the payment in created so the call can be retried.
func (s *Service) StartCheckout(ctx context.Context, paymentID, payerID primitive.ObjectID) (*Checkout, error) {
	p, err := s.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PayerID != payerID {
		return nil, apperr.ErrForbidden
	}
	if p.Terminal() {
		return nil, apperr.ErrPaymentSettled
	}

	req := gateway.OrderRequest{
		OrderID:       p.GatewayOrderID,
		AmountInPaise: p.AmountInPaise,
		Currency:      p.Currency,
		CustomerID:    p.PayerID.Hex(),
		ReturnURL:     s.cfg.ReturnURL,
		NotifyURL:     s.cfg.NotifyURL,
	}
	if s.users != nil {
		if u, err := s.users.GetByID(ctx, payerID); err == nil {
			req.CustomerName = u.Name
			req.CustomerEmail = u.Email
			req.CustomerPhone = u.PhoneNumber
		}
	}

	gctx, cancel := timeouts.WithTimeout(ctx, timeouts.Gateway(), s.log, "gateway.create_order")
	order, err := s.gw.CreateOrder(gctx, req)
	cancel()
	if err != nil {
		s.log.Warn("create order failed", zap.String("order_id", p.GatewayOrderID), zap.Error(err))
		return nil, apperr.External("create order", err)
	}

	if err := s.payments.MarkPending(ctx, p.ID, clock.Now(ctx)); err != nil {
		return nil, apperr.Internal("mark pending", err)
	}
	if p, err = s.Get(ctx, p.ID); err != nil {
		return nil, err
	}
	return &Checkout{Payment: p, OrderID: order.OrderID, PaymentSessionID: order.PaymentSessionID}, nil
}

// MapStatus folds a provider status into a payment status.
func MapStatus(provider string) string {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "success", "paid":
		return models.PaymentSuccess
	case "failed":
		return models.PaymentFailed
	}
	return models.PaymentPending
}

// Reconcile applies a provider report. Unknown orders are ignored, and a
// payment already in success or failed is left alone, so replays and
// out-of-order deliveries are harmless. Only persistence failures return
// an error.
func (s *Service) Reconcile(ctx context.Context, n Notification) (Outcome, error) {
	out, err := s.reconcile(ctx, n, MapStatus(n.Status))
	s.metrics.IncReconcile(string(out))
	return out, err
}

// Discard counts a report that was dropped before reaching Reconcile.
func (s *Service) Discard(out Outcome) {
	s.metrics.IncReconcile(string(out))
}

func (s *Service) reconcile(ctx context.Context, n Notification, status string) (Outcome, error) {
	if strings.TrimSpace(n.OrderID) == "" {
		return Malformed, nil
	}
	p, err := s.payments.ApplyStatus(ctx, n.OrderID, paymentstore.StatusUpdate{
		Status:           status,
		GatewayPaymentID: n.PaymentID,
		ReferenceID:      n.ReferenceID,
		At:               clock.Now(ctx),
	})
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.log.Info("reconcile: unknown order", zap.String("order_id", n.OrderID))
		return UnknownOrder, nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return AlreadyTerminal, nil
	case err != nil:
		return Errored, apperr.Internal("apply payment status", err)
	}

	s.log.Info("payment reconciled",
		zap.String("order_id", n.OrderID),
		zap.String("status", p.Status))

	if p.Status == models.PaymentSuccess && p.Mode == models.ModeTeam && p.TeamID != nil && s.locker != nil {
		if err := s.locker.LockTeam(ctx, *p.TeamID); err != nil {
			s.log.Error("lock paid team", zap.String("team_id", p.TeamID.Hex()), zap.Error(err))
		}
	}
	return Applied, nil
}

// pollStatus folds a provider order_status into a payment status. Orders
// the provider has given up on count as failed.
func pollStatus(orderStatus string) string {
	switch strings.ToUpper(strings.TrimSpace(orderStatus)) {
	case "PAID":
		return models.PaymentSuccess
	case "EXPIRED", "TERMINATED", "CANCELLED":
		return models.PaymentFailed
	}
	return models.PaymentPending
}

// PollResult summarizes one PollPending pass.
type PollResult struct {
	Checked int
	Applied int
	Errors  int
}

// PollPending asks the provider about non-terminal payments untouched for
// olderThan and reconciles what it says.
func (s *Service) PollPending(ctx context.Context, olderThan time.Duration, limit int64) (PollResult, error) {
	var res PollResult
	stale, err := s.payments.ListStalePending(ctx, clock.Now(ctx).Add(-olderThan), limit)
	if err != nil {
		return res, apperr.Internal("list stale payments", err)
	}
	for _, p := range stale {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Checked++

		gctx, cancel := timeouts.WithTimeout(ctx, timeouts.Gateway(), s.log, "gateway.fetch_order")
		orderStatus, err := s.gw.FetchOrderStatus(gctx, p.GatewayOrderID)
		cancel()
		if errors.Is(err, gateway.ErrOrderNotFound) {
			// checkout never started; nothing to learn
			continue
		}
		if err != nil {
			res.Errors++
			s.log.Warn("poll order status", zap.String("order_id", p.GatewayOrderID), zap.Error(err))
			continue
		}

		out, err := s.reconcile(ctx, Notification{OrderID: p.GatewayOrderID}, pollStatus(orderStatus))
		s.metrics.IncReconcile(string(out))
		if err != nil {
			res.Errors++
			s.log.Error("poll reconcile", zap.String("order_id", p.GatewayOrderID), zap.Error(err))
			continue
		}
		if out == Applied {
			res.Applied++
		}
	}
	return res, nil
}

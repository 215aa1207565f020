// internal/app/features/payments/handler.go
package payments

import (
	"io"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/ledger"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves checkout, payment status and the provider webhook.
type Handler struct {
	Ledger   *ledger.Service
	AuditLog *auditlog.Logger
	Log      *zap.Logger

	// WebhookLimiter bounds webhook deliveries per source address. Deliveries
	// over the limit are acknowledged and dropped.
	WebhookLimiter *ratelimit.Limiter
}

func NewHandler(l *ledger.Service, audit *auditlog.Logger, webhookLimiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{Ledger: l, AuditLog: audit, WebhookLimiter: webhookLimiter, Log: logger}
}

// ServeCheckout handles POST /api/payments/{id}/checkout. Only the payer
// may open the provider order.
func (h *Handler) ServeCheckout(w http.ResponseWriter, r *http.Request) {
	payerID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	paymentID, ok := shared.PathID(w, chi.URLParam(r, "id"), "payment")
	if !ok {
		return
	}
	co, err := h.Ledger.StartCheckout(r.Context(), paymentID, payerID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, co)
}

// ServeGet handles GET /api/payments/{id}. The payer, anyone on the paying
// team, and organizers may read it.
func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	paymentID, ok := shared.PathID(w, chi.URLParam(r, "id"), "payment")
	if !ok {
		return
	}
	p, err := h.Ledger.Get(r.Context(), paymentID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	if !canRead(r, p, userID.Hex()) {
		shared.WriteError(w, h.Log, apperr.ErrForbidden)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"payment": p})
}

func canRead(r *http.Request, p *models.Payment, userHex string) bool {
	if p.PayerID.Hex() == userHex || authz.IsOrganizer(r) {
		return true
	}
	if p.TeamID == nil {
		return false
	}
	return authz.UserTeamID(r) == *p.TeamID
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/payments/webhook                                                  |
| Provider status reports. Always answers 200; the status poller picks up     |
| anything discarded here.                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	ok := func() { shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"}) }

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, shared.MaxBodyBytes))
	if err != nil {
		h.Log.Warn("webhook: read body", zap.Error(err))
		ok()
		return
	}

	n, parsed := ledger.ParseWebhook(body)
	if !parsed {
		h.Log.Warn("webhook: discarded malformed payload", zap.Int("bytes", len(body)))
		h.AuditLog.PaymentReconciled(r.Context(), r, "", "", string(ledger.Malformed), "webhook")
		ok()
		return
	}

	outcome, err := h.Ledger.Reconcile(r.Context(), n)
	if err != nil {
		h.Log.Error("webhook: reconcile failed",
			zap.String("order_id", n.OrderID),
			zap.Error(err))
	}
	h.AuditLog.PaymentReconciled(r.Context(), r, n.OrderID, n.Status, string(outcome), "webhook")
	ok()
}

// serveWebhookThrottled acknowledges a delivery the limiter refused without
// applying it.
func (h *Handler) serveWebhookThrottled(w http.ResponseWriter, r *http.Request) {
	h.Log.Warn("webhook: dropped over rate limit", zap.String("ip", ratelimit.ClientIP(r)))
	h.Ledger.Discard(ledger.Throttled)
	h.AuditLog.PaymentReconciled(r.Context(), r, "", "", string(ledger.Throttled), "webhook")
	shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

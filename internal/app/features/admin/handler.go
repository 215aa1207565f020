// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/report"
	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/paging"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"
)

// Handler serves the organizer console and the chat bot's team listing.
type Handler struct {
	Services *services.Set
	AuditLog *auditlog.Logger
	BotToken string
	Log      *zap.Logger
}

func NewHandler(set *services.Set, audit *auditlog.Logger, botToken string, logger *zap.Logger) *Handler {
	return &Handler{Services: set, AuditLog: audit, BotToken: botToken, Log: logger}
}

func (h *Handler) snapshot(ctx context.Context) (*report.Snapshot, error) {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), h.Log, "admin snapshot")
	defer cancel()
	st := h.Services.Stores
	snap, err := report.Load(ctx, st.Users, st.Teams, st.Payments)
	if err != nil {
		return nil, apperr.Internal("load snapshot", err)
	}
	return snap, nil
}

// Lists answer with the matching rows inside the ?start=&limit= window,
// the total match count and a page descriptor.

// ServeTeams handles GET /api/admin/teams[?q=].
func (h *Handler) ServeTeams(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	teams, page := paging.Slice(snap.TeamViews(text.Fold(query.Search(r, "q"))), paging.Parse(r))
	shared.WriteJSON(w, http.StatusOK, map[string]any{"teams": teams, "count": page.Total, "page": page})
}

// ServeSolos handles GET /api/admin/solos.
func (h *Handler) ServeSolos(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshot(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	solos, page := paging.Slice(snap.SoloViews(), paging.Parse(r))
	shared.WriteJSON(w, http.StatusOK, map[string]any{"solos": solos, "count": page.Total, "page": page})
}

// ServePayments handles GET /api/admin/payments[?status=].
func (h *Handler) ServePayments(w http.ResponseWriter, r *http.Request) {
	status := query.Get(r, "status")
	switch status {
	case "", models.PaymentCreated, models.PaymentPending, models.PaymentSuccess, models.PaymentFailed:
	default:
		shared.WriteError(w, h.Log, apperr.Validation("Unknown payment status."))
		return
	}

	snap, err := h.snapshot(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	payments, page := paging.Slice(snap.PaymentViews(status), paging.Parse(r))
	shared.WriteJSON(w, http.StatusOK, map[string]any{"payments": payments, "count": page.Total, "page": page})
}

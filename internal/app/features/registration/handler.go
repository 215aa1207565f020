// internal/app/features/registration/handler.go
package registration

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/orchestrator"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves /api/registration.
type Handler struct {
	Orchestrator *orchestrator.Service
	Roster       *roster.Service
	AuditLog     *auditlog.Logger
	Log          *zap.Logger
}

func NewHandler(orch *orchestrator.Service, r *roster.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Orchestrator: orch, Roster: r, AuditLog: audit, Log: logger}
}

type statusResponse struct {
	RegistrationOpen bool   `json:"registration_open"`
	TeamFeePaise     int64  `json:"team_fee_paise"`
	SoloFeePaise     int64  `json:"solo_fee_paise"`
	Currency         string `json:"currency"`
	MaxTeamSize      int    `json:"max_team_size"`
}

// ServeStatus handles GET /api/registration/status. It is public; the chat
// bot polls it.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	open, err := h.Orchestrator.RegistrationOpen(r.Context())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	fees := h.Orchestrator.Fees()
	shared.WriteJSON(w, http.StatusOK, statusResponse{
		RegistrationOpen: open,
		TeamFeePaise:     fees.Team,
		SoloFeePaise:     fees.Solo,
		Currency:         models.CurrencyINR,
		MaxTeamSize:      h.Roster.MaxSize(),
	})
}

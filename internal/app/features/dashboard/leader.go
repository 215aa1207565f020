// internal/app/features/dashboard/leader.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/report"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.uber.org/zap"
)

type leaderData struct {
	baseData
	Team            *report.TeamView     `json:"team"`
	PendingRequests []models.JoinRequest `json:"pending_requests"`
}

// ServeLeader shows the leader's team, roster, payment and pending requests.
func (h *Handler) ServeLeader(w http.ResponseWriter, r *http.Request, u *models.User) {
	ctx := r.Context()
	t, err := h.Services.Roster.ForLeader(ctx, u.ID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	view, err := h.teamView(ctx, t)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	pending, err := h.Services.JoinFlow.PendingForLeader(ctx, u.ID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}

	h.Log.Debug("leader dashboard served", zap.String("user_id", u.ID.Hex()))

	shared.WriteJSON(w, http.StatusOK, leaderData{
		baseData:        baseData{Role: u.Role, User: u},
		Team:            view,
		PendingRequests: pending,
	})
}

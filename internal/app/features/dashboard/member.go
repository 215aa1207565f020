// internal/app/features/dashboard/member.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/report"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.uber.org/zap"
)

type memberData struct {
	baseData
	Team *report.TeamView `json:"team"`
}

func (h *Handler) ServeMember(w http.ResponseWriter, r *http.Request, u *models.User) {
	data := memberData{baseData: baseData{Role: u.Role, User: u}}

	if u.OnTeam() {
		t, err := h.Services.Roster.Get(r.Context(), *u.TeamID)
		if err != nil {
			shared.WriteError(w, h.Log, err)
			return
		}
		if data.Team, err = h.teamView(r.Context(), t); err != nil {
			shared.WriteError(w, h.Log, err)
			return
		}
	}

	h.Log.Debug("member dashboard served", zap.String("user_id", u.ID.Hex()))

	shared.WriteJSON(w, http.StatusOK, data)
}

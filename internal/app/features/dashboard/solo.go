// internal/app/features/dashboard/solo.go
package dashboard

import (
	"errors"
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type soloRequest struct {
	models.JoinRequest
	TeamName string `json:"team_name"`
}

type soloData struct {
	baseData
	RegistrationOpen bool            `json:"registration_open"`
	Payment          *models.Payment `json:"payment"`
	JoinRequests     []soloRequest   `json:"join_requests"`
}

// ServeSolo shows the solo's own payment and the requests they have made.
func (h *Handler) ServeSolo(w http.ResponseWriter, r *http.Request, u *models.User) {
	ctx := r.Context()
	data := soloData{baseData: baseData{Role: u.Role, User: u}, JoinRequests: []soloRequest{}}

	open, err := h.Services.Orchestrator.RegistrationOpen(ctx)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	data.RegistrationOpen = open

	p, err := h.Services.Ledger.Latest(ctx, u.ID, models.ModeIndividual)
	switch {
	case errors.Is(err, apperr.ErrPaymentNotFound):
	case err != nil:
		shared.WriteError(w, h.Log, err)
		return
	default:
		data.Payment = p
	}

	requests, err := h.Services.JoinFlow.ListForSolo(ctx, u.ID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	names := map[primitive.ObjectID]string{}
	for _, jr := range requests {
		name, seen := names[jr.TeamID]
		if !seen {
			// a deleted team keeps an empty name
			if t, err := h.Services.Roster.Get(ctx, jr.TeamID); err == nil {
				name = t.Name
			}
			names[jr.TeamID] = name
		}
		data.JoinRequests = append(data.JoinRequests, soloRequest{JoinRequest: jr, TeamName: name})
	}

	h.Log.Debug("solo dashboard served", zap.String("user_id", u.ID.Hex()))

	shared.WriteJSON(w, http.StatusOK, data)
}

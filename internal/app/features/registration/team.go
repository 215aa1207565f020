// internal/app/features/registration/team.go
package registration

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/orchestrator"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memberInput struct {
	shared.ProfileInput
	Password string `json:"password" validate:"omitempty,min=6,max=72" label:"Member password"`
}

type teamInput struct {
	TeamName string              `json:"team_name" validate:"required,max=80" label:"Team name"`
	Leader   shared.ProfileInput `json:"leader"`
	Members  []memberInput       `json:"members" validate:"dive"`
}

func (in *teamInput) Normalize() {
	in.TeamName = normalize.Name(in.TeamName)
	in.Leader.Normalize()
	for i := range in.Members {
		in.Members[i].Normalize()
	}
}

func (in *teamInput) toRoster(leaderID primitive.ObjectID) roster.CreateTeamInput {
	out := roster.CreateTeamInput{
		LeaderID:      leaderID,
		Name:          in.TeamName,
		LeaderProfile: in.Leader.Profile(),
		Members:       make([]roster.MemberInput, 0, len(in.Members)),
	}
	for _, m := range in.Members {
		out.Members = append(out.Members, roster.MemberInput{Profile: m.Profile(), Password: m.Password})
	}
	return out
}

type teamResponse struct {
	Team          *models.Team    `json:"team"`
	Payment       *models.Payment `json:"payment"`
	AmountInPaise int64           `json:"amount_in_paise"`
}

func teamResponseOf(reg *orchestrator.TeamRegistration) teamResponse {
	return teamResponse{Team: reg.Team, Payment: reg.Payment, AmountInPaise: reg.AmountInPaise}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/registration/team                                                 |
| The signed-in participant becomes leader of a new team; member accounts     |
| are created from the submitted profiles.                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeTeam(w http.ResponseWriter, r *http.Request) {
	leaderID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var in teamInput
	if !shared.Bind(w, r, &in) {
		return
	}
	for _, m := range in.Members {
		if m.Email == "" {
			shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{
				Error:   "validation_error",
				Message: "Every member needs an email address.",
			})
			return
		}
	}

	reg, err := h.Orchestrator.RegisterTeam(r.Context(), in.toRoster(leaderID))
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}

	team := reg.Team
	h.AuditLog.TeamCreated(r.Context(), r, leaderID, team.ID, team.Name, len(team.MemberIDs))
	h.AuditLog.PaymentIntentCreated(r.Context(), r, leaderID, reg.Payment.ID, &team.ID, models.ModeTeam, reg.AmountInPaise)

	shared.WriteJSON(w, http.StatusCreated, teamResponseOf(reg))
}

// ServeResumePayment handles POST /api/registration/resume-payment for a
// leader whose team has no usable payment intent.
func (h *Handler) ServeResumePayment(w http.ResponseWriter, r *http.Request) {
	leaderID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	reg, err := h.Orchestrator.ResumePayment(r.Context(), leaderID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, teamResponseOf(reg))
}

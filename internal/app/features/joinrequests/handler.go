// internal/app/features/joinrequests/handler.go
package joinrequests

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/joinflow"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the solo → team join workflow.
type Handler struct {
	JoinFlow *joinflow.Service
	Roster   *roster.Service
	Identity *identity.Service
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(jf *joinflow.Service, r *roster.Service, ids *identity.Service, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{JoinFlow: jf, Roster: r, Identity: ids, AuditLog: audit, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Views                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// Participant is the part of a user a counterpart may see.
type Participant struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	RegistrationNumber string `json:"registration_number,omitempty"`
	YearOfStudy        int    `json:"year_of_study,omitempty"`
	ResidenceType      string `json:"residence_type,omitempty"`
}

// TeamRef names the team a request targets.
type TeamRef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
}

// View is a join request with its counterpart expanded.
type View struct {
	models.JoinRequest
	Solo *Participant `json:"solo,omitempty"`
	Team *TeamRef     `json:"team,omitempty"`
}

func participantOf(u *models.User) *Participant {
	return &Participant{
		ID:                 u.ID.Hex(),
		Name:               u.Name,
		Email:              u.Email,
		RegistrationNumber: u.RegistrationNumber,
		YearOfStudy:        u.YearOfStudy,
		ResidenceType:      u.ResidenceType,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/join-requests                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

type createInput struct {
	TeamID string `json:"team_id" validate:"required,objectid" label:"Team"`
}

// ServeCreate files a request. Repeating it returns the pending request
// with 200 instead of 201.
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	soloID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var in createInput
	if !shared.Bind(w, r, &in) {
		return
	}
	teamID, ok := shared.PathID(w, in.TeamID, "team")
	if !ok {
		return
	}

	jr, created, err := h.JoinFlow.Request(r.Context(), teamID, soloID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		h.AuditLog.JoinRequested(r.Context(), r, soloID, teamID, jr.ID)
	}
	shared.WriteJSON(w, status, map[string]any{"request": jr, "created": created})
}

// ServePending handles GET /api/join-requests/pending for team leaders.
func (h *Handler) ServePending(w http.ResponseWriter, r *http.Request) {
	leaderID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	list, err := h.JoinFlow.PendingForLeader(r.Context(), leaderID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	out := make([]View, 0, len(list))
	for _, jr := range list {
		v := View{JoinRequest: jr}
		if u, err := h.Identity.Get(r.Context(), jr.SoloID); err == nil {
			v.Solo = participantOf(u)
		}
		out = append(out, v)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

// ServeMine handles GET /api/join-requests/mine for solos.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	soloID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	list, err := h.JoinFlow.ListForSolo(r.Context(), soloID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	out := make([]View, 0, len(list))
	for _, jr := range list {
		v := View{JoinRequest: jr}
		if t, err := h.Roster.Get(r.Context(), jr.TeamID); err == nil {
			v.Team = &TeamRef{ID: t.ID.Hex(), Name: t.Name, Remaining: t.Remaining()}
		}
		out = append(out, v)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"requests": out})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/join-requests/{id}/decision                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// DecisionInput is the body of a decision on a join request.
type DecisionInput struct {
	Action string `json:"action" validate:"required,oneof=accept reject" label:"Action"`
}

// ServeDecide applies the leader's decision.
func (h *Handler) ServeDecide(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	reqID, ok := shared.PathID(w, chi.URLParam(r, "id"), "request")
	if !ok {
		return
	}
	var in DecisionInput
	if !shared.Bind(w, r, &in) {
		return
	}

	jr, err := h.JoinFlow.Decide(r.Context(), reqID, actorID, in.Action)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.JoinDecided(r.Context(), r, actorID, jr.SoloID, jr.TeamID, jr.Status == models.JoinAccepted)
	shared.WriteJSON(w, http.StatusOK, map[string]any{"request": jr})
}

// ServeCancel handles POST /api/join-requests/{id}/cancel by the solo who
// filed it.
func (h *Handler) ServeCancel(w http.ResponseWriter, r *http.Request) {
	soloID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	reqID, ok := shared.PathID(w, chi.URLParam(r, "id"), "request")
	if !ok {
		return
	}
	jr, err := h.JoinFlow.Cancel(r.Context(), reqID, soloID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.JoinCancelled(r.Context(), r, soloID, jr.TeamID)
	shared.WriteJSON(w, http.StatusOK, map[string]any{"request": jr})
}

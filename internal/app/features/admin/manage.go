// internal/app/features/admin/manage.go
package admin

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/joinrequests"
	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ServeDeleteTeam handles DELETE /api/admin/teams/{id}. Everyone on the
// roster goes back to solo.
func (h *Handler) ServeDeleteTeam(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	teamID, ok := shared.PathID(w, chi.URLParam(r, "id"), "team")
	if !ok {
		return
	}
	t, err := h.Services.Roster.Get(r.Context(), teamID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	if err := h.Services.Roster.RemoveTeam(r.Context(), teamID); err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.TeamDeleted(r.Context(), r, actorID, teamID, t.Name)
	h.Log.Info("team deleted by organizer",
		zap.String("team_id", teamID.Hex()),
		zap.String("actor_id", actorID.Hex()))
	w.WriteHeader(http.StatusNoContent)
}

// ServeDeleteUser handles DELETE /api/admin/users/{id}.
func (h *Handler) ServeDeleteUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	userID, ok := shared.PathID(w, chi.URLParam(r, "id"), "user")
	if !ok {
		return
	}
	if userID == actorID {
		shared.WriteError(w, h.Log, apperr.Validation("You cannot delete your own account."))
		return
	}
	u, err := h.Services.Identity.Get(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	if err := h.Services.Roster.RemoveUser(r.Context(), userID); err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.UserDeleted(r.Context(), r, actorID, userID, u.Role)
	w.WriteHeader(http.StatusNoContent)
}

type registrationInput struct {
	Open *bool `json:"open" validate:"required" label:"Open"`
}

// ServeRegistrationStatus handles PUT /api/admin/registration-status.
func (h *Handler) ServeRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var in registrationInput
	if !shared.Bind(w, r, &in) {
		return
	}
	if err := h.Services.Orchestrator.SetRegistrationOpen(r.Context(), *in.Open, &actorID); err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.RegistrationToggled(r.Context(), r, actorID, *in.Open)
	shared.WriteJSON(w, http.StatusOK, map[string]bool{"registration_open": *in.Open})
}

// ServeDecide handles POST /api/admin/join-requests/{id}/decision. Capacity
// and state rules are the same as for the leader.
func (h *Handler) ServeDecide(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	reqID, ok := shared.PathID(w, chi.URLParam(r, "id"), "request")
	if !ok {
		return
	}
	var in joinrequests.DecisionInput
	if !shared.Bind(w, r, &in) {
		return
	}
	jr, err := h.Services.JoinFlow.DecideAsOrganizer(r.Context(), reqID, actorID, in.Action)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.JoinDecided(r.Context(), r, actorID, jr.SoloID, jr.TeamID, jr.Status == models.JoinAccepted)
	shared.WriteJSON(w, http.StatusOK, map[string]any{"request": jr})
}

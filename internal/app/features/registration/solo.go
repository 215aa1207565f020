// internal/app/features/registration/solo.go
package registration

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/domain/models"
)

type soloResponse struct {
	User          *models.User    `json:"user"`
	Payment       *models.Payment `json:"payment"`
	AmountInPaise int64           `json:"amount_in_paise"`
}

// ServeSolo handles POST /api/registration/solo. Calling it again updates
// the profile and returns the same unsettled intent.
func (h *Handler) ServeSolo(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	var in shared.ProfileInput
	if !shared.Bind(w, r, &in) {
		return
	}

	reg, err := h.Orchestrator.RegisterSolo(r.Context(), userID, in.Profile())
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.SoloRegistered(r.Context(), r, userID)
	h.AuditLog.PaymentIntentCreated(r.Context(), r, userID, reg.Payment.ID, nil, models.ModeIndividual, reg.AmountInPaise)

	shared.WriteJSON(w, http.StatusCreated, soloResponse{
		User:          reg.User,
		Payment:       reg.Payment,
		AmountInPaise: reg.AmountInPaise,
	})
}

// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.uber.org/zap"
)

type Handler struct {
	Services *services.Set
	Log      *zap.Logger
}

func NewHandler(set *services.Set, logger *zap.Logger) *Handler {
	return &Handler{
		Services: set,
		Log:      logger,
	}
}

// ServeDashboard handles GET /api/dashboard and dispatches on the caller's
// stored role, which may be newer than the one in their credential.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := shared.Actor(w, r)
	if !ok {
		return
	}
	u, err := h.Services.Identity.Get(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}

	switch u.Role {
	case models.RoleOrganizer:
		h.ServeOrganizer(w, r, u)
	case models.RoleLeader:
		h.ServeLeader(w, r, u)
	case models.RoleMember:
		h.ServeMember(w, r, u)
	default:
		h.ServeSolo(w, r, u)
	}
}

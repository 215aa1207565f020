// internal/app/features/joinrequests/routes.go
package joinrequests

import (
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/join-requests.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)

	r.With(authz.RequireRole(models.RoleSolo)).Post("/", h.ServeCreate)
	r.With(authz.RequireRole(models.RoleSolo)).Get("/mine", h.ServeMine)
	r.With(authz.RequireRole(models.RoleSolo)).Post("/{id}/cancel", h.ServeCancel)

	r.With(authz.RequireRole(models.RoleLeader)).Get("/pending", h.ServePending)
	r.With(authz.RequireRole(models.RoleLeader)).Post("/{id}/decision", h.ServeDecide)

	return r
}

// internal/app/features/admin/routes.go
package admin

import (
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/admin.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// the chat bot reads the team list with its shared token
	r.With(authz.RequireBotOrRole(h.BotToken, models.RoleOrganizer)).Get("/teams", h.ServeTeams)

	r.Group(func(pr chi.Router) {
		pr.Use(authz.RequireRole(models.RoleOrganizer))
		pr.Get("/solos", h.ServeSolos)
		pr.Get("/payments", h.ServePayments)
		pr.Delete("/teams/{id}", h.ServeDeleteTeam)
		pr.Delete("/users/{id}", h.ServeDeleteUser)
		pr.Put("/registration-status", h.ServeRegistrationStatus)
		pr.Post("/join-requests/{id}/decision", h.ServeDecide)
		pr.Get("/export/{file}", h.ServeExport)
	})
	return r
}

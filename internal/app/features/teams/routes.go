// internal/app/features/teams/routes.go
package teams

import (
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/teams.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireSignedIn)
	r.Get("/", h.ServeOpen)
	return r
}

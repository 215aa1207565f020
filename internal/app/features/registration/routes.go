// internal/app/features/registration/routes.go
package registration

import (
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/registration.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/status", h.ServeStatus)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/team", h.ServeTeam)
		pr.Post("/solo", h.ServeSolo)
		pr.Post("/resume-payment", h.ServeResumePayment)
	})
	return r
}

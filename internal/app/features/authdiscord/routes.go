// internal/app/features/authdiscord/routes.go
package authdiscord

import (
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/auth/discord.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// GET /api/auth/discord/start - begin linking (signed-in participants)
	r.With(auth.RequireSignedIn).Get("/start", h.ServeStart)

	// GET /api/auth/discord/callback - provider redirect; the state carries the user
	r.Get("/callback", h.ServeCallback)

	return r
}

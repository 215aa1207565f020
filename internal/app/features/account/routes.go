// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.ServeRegister)
	r.Get("/verify-email", h.ServeVerifyEmail)
	r.Post("/resend-verification", h.ServeResendVerification)
	r.Post("/login", h.ServeLogin)
	r.Post("/logout", h.ServeLogout)

	r.With(auth.RequireSignedIn).Get("/me", h.ServeMe)

	// the bot authenticates with its shared token, not a user credential
	r.With(authz.RequireBot(h.BotToken)).Post("/link-discord", h.ServeLinkDiscord)

	return r
}

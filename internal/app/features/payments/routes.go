// internal/app/features/payments/routes.go
package payments

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"github.com/go-chi/chi/v5"
)

// Routes returns the router mounted at /api/payments.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// provider callback; unauthenticated. Over-limit deliveries still get 200.
	if h.WebhookLimiter != nil {
		r.With(ratelimit.Middleware(h.WebhookLimiter, http.HandlerFunc(h.serveWebhookThrottled))).Post("/webhook", h.ServeWebhook)
	} else {
		r.Post("/webhook", h.ServeWebhook)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Post("/{id}/checkout", h.ServeCheckout)
		pr.Get("/{id}", h.ServeGet)
	})
	return r
}

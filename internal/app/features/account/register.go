// internal/app/features/account/register.go
package account

import (
	"net/http"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

type registerInput struct {
	shared.ProfileInput
	Password string `json:"password" validate:"required,min=6,max=72" label:"Password"`
}

type userResponse struct {
	Message string       `json:"message,omitempty"`
	User    *models.User `json:"user"`
}

// ServeRegister handles POST /api/auth/register.
func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if !shared.Bind(w, r, &in) {
		return
	}
	if in.Email == "" {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "validation_error", Message: "Email is required."})
		return
	}

	u, err := h.Identity.Register(r.Context(), in.Profile(), in.Password)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.UserRegistered(r.Context(), r, u.ID, u.Email)

	shared.WriteJSON(w, http.StatusCreated, userResponse{
		Message: "Registered. Check your email for a verification link.",
		User:    u,
	})
}

// ServeVerifyEmail handles GET /api/auth/verify-email?token=.
func (h *Handler) ServeVerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.Identity.VerifyEmail(r.Context(), query.Get(r, "token"))
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.EmailVerified(r.Context(), r, u.ID)
	shared.WriteJSON(w, http.StatusOK, userResponse{Message: "Email verified.", User: u})
}

// ServeResendVerification handles POST /api/auth/resend-verification.
// The answer is the same whether or not the address is known.
func (h *Handler) ServeResendVerification(w http.ResponseWriter, r *http.Request) {
	var in emailInput
	if !shared.DecodeJSON(w, r, &in) {
		return
	}
	email := normalize.Email(in.Email)
	if email == "" {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{Error: "validation_error", Message: "Email is required."})
		return
	}

	if err := h.Identity.ResendVerification(r.Context(), email); err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.VerificationResent(r.Context(), r, email)
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If that account exists and is not yet verified, a new link has been sent.",
	})
}

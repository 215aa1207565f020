// internal/app/features/account/login.go
package account

import (
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/normalize"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/login                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeLogin checks the password and returns a bearer token. Browser
// clients also receive it in the session cookie.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if !shared.DecodeJSON(w, r, &in) {
		return
	}
	in.Email = normalize.Email(in.Email)
	if in.Email == "" || in.Password == "" {
		shared.WriteJSON(w, http.StatusBadRequest, shared.ErrorBody{
			Error:   "validation_error",
			Message: "Email and password are required.",
		})
		return
	}

	if ok, reason := h.Limiter.Check(r, in.Email); !ok {
		h.AuditLog.LoginFailedRateLimit(r.Context(), r, in.Email)
		w.Header().Set("Retry-After", "60")
		shared.WriteJSON(w, http.StatusTooManyRequests, shared.ErrorBody{Error: "rate_limited", Message: reason})
		return
	}

	cred, err := h.Identity.Authenticate(r.Context(), in.Email, in.Password)
	switch {
	case errors.Is(err, apperr.ErrAccountLocked):
		h.AuditLog.LoginFailedLocked(r.Context(), r, in.Email)
		shared.WriteError(w, h.Log, err)
		return
	case errors.Is(err, apperr.ErrInvalidCredentials):
		// unknown email and wrong password are indistinguishable here
		h.AuditLog.LoginFailedWrongPassword(r.Context(), r, primitive.NilObjectID, in.Email)
		shared.WriteError(w, h.Log, err)
		return
	case err != nil:
		shared.WriteError(w, h.Log, err)
		return
	}

	h.Limiter.ResetEmail(in.Email)
	if err := h.SessionMgr.SetToken(w, r, cred.Token); err != nil {
		h.Log.Warn("login: save session cookie", zap.Error(err))
	}
	h.AuditLog.LoginSuccess(r.Context(), r, cred.User.ID, cred.User.Email, "password")

	shared.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     cred.Token,
		ExpiresAt: cred.ExpiresAt,
		User:      cred.User,
	})
}

// ServeLogout handles POST /api/auth/logout. Bearer tokens are stateless
// and simply discarded by the client; the cookie is expired here.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionMgr.Clear(w, r); err != nil {
		h.Log.Warn("logout: clear session cookie", zap.Error(err))
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed out."})
}

// ServeMe handles GET /api/auth/me.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		shared.WriteError(w, h.Log, apperr.ErrUnauthenticated)
		return
	}
	id, err := primitive.ObjectIDFromHex(su.ID)
	if err != nil {
		shared.WriteError(w, h.Log, apperr.ErrUnauthenticated)
		return
	}
	u, err := h.Identity.Get(r.Context(), id)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, userResponse{User: u})
}

// ServeLinkDiscord handles POST /api/auth/link-discord for the chat bot.
func (h *Handler) ServeLinkDiscord(w http.ResponseWriter, r *http.Request) {
	var in linkDiscordInput
	if !shared.Bind(w, r, &in) {
		return
	}
	u, err := h.Identity.LinkDiscord(r.Context(), normalize.Email(in.Email), in.DiscordID)
	if err != nil {
		shared.WriteError(w, h.Log, err)
		return
	}
	h.AuditLog.DiscordLinked(r.Context(), r, u.ID, u.DiscordID)
	shared.WriteJSON(w, http.StatusOK, userResponse{Message: "Discord account linked.", User: u})
}

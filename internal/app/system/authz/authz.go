// internal/app/system/authz/authz.go
package authz

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, ObjectID, and a found
// flag. A missing user or malformed id yields "visitor", "", NilObjectID,
// false, so ok=true always means a valid authenticated user.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed id in a token; fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// HasAnyRole reports whether the current user has any of the given roles.
func HasAnyRole(r *http.Request, roles ...string) bool {
	role, _, _, ok := UserCtx(r)
	if !ok {
		return false
	}
	for _, want := range roles {
		if role == strings.ToLower(strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// IsOrganizer reports whether the current user is an organizer.
func IsOrganizer(r *http.Request) bool {
	return HasAnyRole(r, models.RoleOrganizer)
}

// UserTeamID returns the current user's team id, or NilObjectID.
func UserTeamID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.TeamID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.TeamID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// RequireRole allows only signed-in users holding one of the roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, _, _, ok := UserCtx(r); !ok {
				auth.WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if !HasAnyRole(r, allowed...) {
				auth.WriteJSONError(w, http.StatusForbidden, "forbidden", "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsBot reports whether the request carries the shared automation token.
// An empty configured token disables bot access.
func IsBot(r *http.Request, botToken string) bool {
	if botToken == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bot ")
	if !ok {
		got = r.Header.Get("X-Bot-Token")
	}
	return got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(botToken)) == 1
}

// RequireBotOrRole lets the automation client through, or falls back to
// RequireRole for human callers.
func RequireBotOrRole(botToken string, allowed ...string) func(http.Handler) http.Handler {
	byRole := RequireRole(allowed...)
	return func(next http.Handler) http.Handler {
		guarded := byRole(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsBot(r, botToken) {
				next.ServeHTTP(w, r)
				return
			}
			guarded.ServeHTTP(w, r)
		})
	}
}

// RequireBot allows only the automation client.
func RequireBot(botToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsBot(r, botToken) {
				auth.WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", "bot token required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

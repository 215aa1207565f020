package authz_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func withRole(role string) *http.Request {
	req := httptest.NewRequest("GET", "/test", nil)
	return auth.WithTestUser(req, &auth.SessionUser{ID: primitive.NewObjectID().Hex(), Role: role})
}

func ok() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
}

func TestUserCtx_MalformedIDFailsClosed(t *testing.T) {
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{ID: "not-hex", Role: "organizer"})
	role, _, id, ok := authz.UserCtx(req)
	if ok || role != "visitor" || id != primitive.NilObjectID {
		t.Errorf("expected visitor, got role=%q ok=%v", role, ok)
	}
	if authz.IsOrganizer(req) {
		t.Error("malformed id must not be treated as organizer")
	}
}

func TestHasAnyRole(t *testing.T) {
	if !authz.HasAnyRole(withRole("Leader"), "leader", "member") {
		t.Error("expected case-insensitive match")
	}
	if authz.HasAnyRole(withRole("solo"), "leader", "member") {
		t.Error("solo is not leader/member")
	}
	if authz.HasAnyRole(httptest.NewRequest("GET", "/", nil), "solo") {
		t.Error("anonymous has no role")
	}
}

func TestUserTeamID(t *testing.T) {
	team := primitive.NewObjectID()
	req := auth.WithTestUser(httptest.NewRequest("GET", "/", nil), &auth.SessionUser{
		ID: primitive.NewObjectID().Hex(), Role: "member", TeamID: team.Hex(),
	})
	if got := authz.UserTeamID(req); got != team {
		t.Errorf("UserTeamID: got %v, want %v", got, team)
	}
	if got := authz.UserTeamID(withRole("solo")); got != primitive.NilObjectID {
		t.Errorf("solo should have no team, got %v", got)
	}
}

func TestRequireRole(t *testing.T) {
	h := authz.RequireRole("organizer")(ok())

	cases := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"anonymous", httptest.NewRequest("GET", "/", nil), http.StatusUnauthorized},
		{"wrong role", withRole("leader"), http.StatusForbidden},
		{"organizer", withRole("organizer"), http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, tc.req)
		if rec.Code != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, rec.Code, tc.want)
		}
	}
}

func TestRequireBotOrRole(t *testing.T) {
	h := authz.RequireBotOrRole("bot-secret", "organizer")(ok())

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bot bot-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("bot: got %d, want 200", rec.Code)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Bot-Token", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong bot token: got %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withRole("organizer"))
	if rec.Code != http.StatusOK {
		t.Errorf("organizer: got %d, want 200", rec.Code)
	}
}

func TestIsBot_EmptyConfiguredToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Bot-Token", "")
	if authz.IsBot(req, "") {
		t.Error("empty configured token must disable bot access")
	}
}

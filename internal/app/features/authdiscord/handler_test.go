package authdiscord_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/features/authdiscord"
	"github.com/dalemusser/teamreg/internal/app/store/oauthstate"
	"github.com/dalemusser/teamreg/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

type memStates struct {
	mu sync.Mutex
	m  map[string]oauthstate.State
}

func (s *memStates) Save(_ context.Context, state string, userID primitive.ObjectID, returnURL string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]oauthstate.State{}
	}
	s.m[state] = oauthstate.State{State: state, UserID: userID, ReturnURL: returnURL, ExpiresAt: expiresAt}
	return nil
}

func (s *memStates) Consume(_ context.Context, state string) (oauthstate.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[state]
	if !ok || !st.ExpiresAt.After(time.Now()) {
		return oauthstate.State{}, false, nil
	}
	delete(s.m, state)
	return st, true, nil
}

func (s *memStates) only(t *testing.T) oauthstate.State {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.m, 1)
	for _, st := range s.m {
		return st
	}
	return oauthstate.State{}
}

func fakeDiscord(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"discord-token","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/users/@me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer discord-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"80351110224678912","username":"asha"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T) (*testutil.App, *authdiscord.Handler, *memStates, http.Handler) {
	t.Helper()
	app := testutil.NewApp(t)
	states := &memStates{}
	srv := fakeDiscord(t)

	h := authdiscord.NewHandler(app.Services.Identity, states, nil, "client-id", "client-secret", "http://localhost:8080", zap.NewNop())
	h.Endpoint = oauth2.Endpoint{
		AuthURL:   srv.URL + "/oauth2/authorize",
		TokenURL:  srv.URL + "/api/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	h.UserInfoURL = srv.URL + "/api/users/@me"
	h.DoneURL = "/dashboard"

	r := chi.NewRouter()
	r.Mount("/api/auth/discord", authdiscord.Routes(h))
	return app, h, states, r
}

func TestStart_RequiresSignIn(t *testing.T) {
	_, _, _, r := setup(t)
	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/discord/start", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestStart_NotConfigured(t *testing.T) {
	app, h, _, r := setup(t)
	h.ClientID = ""
	u := app.Register(t, "Asha", "asha@example.com")

	rec := testutil.NewRecorder()
	r.ServeHTTP(rec, testutil.WithUser(httptest.NewRequest("GET", "/api/auth/discord/start", nil), testutil.UserFrom(*u)))
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestLinkFlow(t *testing.T) {
	app, _, states, r := setup(t)
	u := app.Register(t, "Asha", "asha@example.com")

	rec := testutil.NewRecorder()
	req := testutil.WithUser(httptest.NewRequest("GET", "/api/auth/discord/start?return=/teams", nil), testutil.UserFrom(*u))
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusTemporaryRedirect)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/oauth2/authorize", loc.Path)
	assert.Equal(t, "identify", loc.Query().Get("scope"))

	st := states.only(t)
	assert.Equal(t, u.ID, st.UserID)
	assert.Equal(t, "/teams", st.ReturnURL)
	assert.Equal(t, st.State, loc.Query().Get("state"))

	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/discord/callback?code=good-code&state="+url.QueryEscape(st.State), nil))
	rec.AssertStatus(t, http.StatusSeeOther)
	assert.Equal(t, "/teams?discord=linked", rec.Header().Get("Location"))
	assert.Equal(t, "80351110224678912", app.User(t, u.ID).DiscordID)

	// state is single use
	rec = testutil.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/auth/discord/callback?code=good-code&state="+url.QueryEscape(st.State), nil))
	assert.Equal(t, "/dashboard?error=invalid_state", rec.Header().Get("Location"))
}

func TestCallback_Errors(t *testing.T) {
	app, _, states, r := setup(t)
	u := app.Register(t, "Asha", "asha@example.com")
	require.NoError(t, states.Save(context.Background(), "s1", u.ID, "/teams", time.Now().Add(time.Minute)))

	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"provider denied", "/api/auth/discord/callback?error=access_denied", "/dashboard?error=discord_denied"},
		{"missing state", "/api/auth/discord/callback?code=good-code", "/dashboard?error=invalid_state"},
		{"unknown state", "/api/auth/discord/callback?code=good-code&state=nope", "/dashboard?error=invalid_state"},
		{"bad code", "/api/auth/discord/callback?code=bad-code&state=s1", "/teams?error=token_exchange"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest("GET", tc.target, nil))
			rec.AssertStatus(t, http.StatusSeeOther)
			assert.Equal(t, tc.want, rec.Header().Get("Location"))
		})
	}
	assert.Empty(t, app.User(t, u.ID).DiscordID)
}

func TestStart_UnsafeReturnFallsBack(t *testing.T) {
	app, _, states, r := setup(t)
	u := app.Register(t, "Asha", "asha@example.com")

	rec := testutil.NewRecorder()
	req := testutil.WithUser(httptest.NewRequest("GET", "/api/auth/discord/start?return=https://evil.example.com/", nil), testutil.UserFrom(*u))
	r.ServeHTTP(rec, req)
	rec.AssertStatus(t, http.StatusTemporaryRedirect)
	assert.Equal(t, "/dashboard", states.only(t).ReturnURL)
}

package account_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/features/account"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"github.com/dalemusser/teamreg/internal/testutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const botToken = "bot-secret"

func newRouter(t *testing.T, app *testutil.App, limiter *ratelimit.LoginLimiter) http.Handler {
	t.Helper()
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 100, time.Minute)
	}
	t.Cleanup(limiter.Close)
	h := account.NewHandler(app.Services.Identity, app.Sessions, limiter, auditlog.New(nil, zap.NewNop(), auditlog.Config{}), botToken, zap.NewNop())

	r := chi.NewRouter()
	r.Use(app.Sessions.LoadUser)
	r.Mount("/api/auth", account.Routes(h))
	return r
}

func do(h http.Handler, req *http.Request) *testutil.ResponseRecorder {
	rec := testutil.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterAndVerify(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/register", map[string]any{
		"name":           "  Asha   Rao ",
		"email":          "Asha@Example.com",
		"password":       "secret123",
		"phone_number":   "+91 98765 43210",
		"residence_type": "hosteller",
	}))
	rec.AssertStatus(t, http.StatusCreated)

	var body struct {
		User models.User `json:"user"`
	}
	require.NoError(t, rec.DecodeJSON(&body))
	assert.Equal(t, "asha@example.com", body.User.Email)
	assert.Equal(t, "Asha Rao", body.User.Name)
	assert.Equal(t, models.RoleSolo, body.User.Role)
	assert.False(t, body.User.EmailVerified)
	rec.AssertContains(t, `"email_verified":false`)
	assert.NotContains(t, rec.Body.String(), "password_hash")

	sent := app.Mail.Last()
	require.NotEmpty(t, sent.Token)
	assert.Equal(t, "asha@example.com", sent.To)

	rec = do(h, httptest.NewRequest("GET", "/api/auth/verify-email?token="+sent.Token, nil))
	rec.AssertStatus(t, http.StatusOK)
	assert.True(t, app.User(t, body.User.ID).EmailVerified)

	// single use
	rec = do(h, httptest.NewRequest("GET", "/api/auth/verify-email?token="+sent.Token, nil))
	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)
	app.Register(t, "First", "dup@example.com")

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/register", map[string]any{
		"name": "Second", "email": "DUP@example.com", "password": "secret123",
	}))
	rec.AssertStatus(t, http.StatusConflict)
	rec.AssertContains(t, "duplicate_email")
}

func TestRegister_Validation(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"short password", map[string]any{"name": "A", "email": "a@example.com", "password": "123"}},
		{"missing name", map[string]any{"email": "a@example.com", "password": "secret123"}},
		{"bad email", map[string]any{"name": "A", "email": "not-an-email", "password": "secret123"}},
		{"missing email", map[string]any{"name": "A", "password": "secret123"}},
		{"bad residence", map[string]any{"name": "A", "email": "a@example.com", "password": "secret123", "residence_type": "Tent"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/register", tc.body))
			rec.AssertStatus(t, http.StatusBadRequest)
			rec.AssertContains(t, "validation_error")
		})
	}
	assert.Empty(t, app.Mail.Sent)
}

func TestResendVerification(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	u, err := app.Services.Identity.Register(t.Context(), models.Profile{Name: "P", Email: "p@example.com"}, "secret123")
	require.NoError(t, err)
	first := app.Mail.Last().Token

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/resend-verification", map[string]string{"email": "p@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	assert.Len(t, app.Mail.Sent, 2)
	assert.NotEqual(t, first, app.Mail.Last().Token)
	assert.Equal(t, app.Mail.Last().Token, app.User(t, u.ID).VerifyToken)

	rec = do(h, testutil.NewJSONRequest("POST", "/api/auth/resend-verification", map[string]string{"email": "nobody@example.com"}))
	rec.AssertStatus(t, http.StatusOK)
	assert.Len(t, app.Mail.Sent, 2)
}

func TestLogin_SuccessSetsCookieAndToken(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)
	u := app.Register(t, "Asha", "asha@example.com")

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
		"email": " ASHA@example.com ", "password": "secret123",
	}))
	rec.AssertStatus(t, http.StatusOK)

	var body struct {
		Token     string      `json:"token"`
		ExpiresAt time.Time   `json:"expires_at"`
		User      models.User `json:"user"`
	}
	require.NoError(t, rec.DecodeJSON(&body))
	require.NotEmpty(t, body.Token)
	assert.Equal(t, u.ID, body.User.ID)
	assert.True(t, body.ExpiresAt.After(time.Now()))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "test-session", cookies[0].Name)

	// bearer token
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Token)
	rec = do(h, req)
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "asha@example.com")

	// cookie
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(cookies[0])
	rec = do(h, req)
	rec.AssertStatus(t, http.StatusOK)
}

func TestMe_Anonymous(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	rec := do(h, httptest.NewRequest("GET", "/api/auth/me", nil))
	rec.AssertStatus(t, http.StatusUnauthorized)
}

func TestLogin_WrongPasswordThenLocked(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)
	app.Register(t, "Asha", "asha@example.com")

	for i := 0; i < 5; i++ {
		rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
			"email": "asha@example.com", "password": "wrong-password",
		}))
		rec.AssertStatus(t, http.StatusUnauthorized)
		rec.AssertContains(t, "invalid_credentials")
	}

	// the right password no longer works while the lock holds
	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
		"email": "asha@example.com", "password": "secret123",
	}))
	rec.AssertStatus(t, http.StatusLocked)
	rec.AssertContains(t, "account_locked")
}

func TestLogin_UnknownEmail(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
		"email": "ghost@example.com", "password": "whatever1",
	}))
	rec.AssertStatus(t, http.StatusUnauthorized)
	rec.AssertContains(t, "invalid_credentials")
}

func TestLogin_RateLimited(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, ratelimit.NewLoginLimiterWithConfig(100, time.Minute, 2, time.Minute))
	app.Register(t, "Asha", "asha@example.com")

	for i := 0; i < 2; i++ {
		rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
			"email": "asha@example.com", "password": "nope-nope",
		}))
		rec.AssertStatus(t, http.StatusUnauthorized)
	}
	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{
		"email": "asha@example.com", "password": "secret123",
	}))
	rec.AssertStatus(t, http.StatusTooManyRequests)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestLogin_MissingFields(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/login", map[string]string{"email": "a@example.com"}))
	rec.AssertStatus(t, http.StatusBadRequest)

	rec = do(h, httptest.NewRequest("POST", "/api/auth/login", nil))
	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "request body is required")
}

func TestLogout_ExpiresCookie(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)

	rec := do(h, httptest.NewRequest("POST", "/api/auth/logout", nil))
	rec.AssertStatus(t, http.StatusOK)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestLinkDiscord(t *testing.T) {
	app := testutil.NewApp(t)
	h := newRouter(t, app, nil)
	u := app.Register(t, "Asha", "asha@example.com")
	body := map[string]string{"email": "asha@example.com", "discord_id": "123456789"}

	rec := do(h, testutil.NewJSONRequest("POST", "/api/auth/link-discord", body))
	rec.AssertStatus(t, http.StatusUnauthorized)

	req := testutil.NewJSONRequest("POST", "/api/auth/link-discord", body)
	req.Header.Set("Authorization", "Bot "+botToken)
	rec = do(h, req)
	rec.AssertStatus(t, http.StatusOK)
	assert.Equal(t, "123456789", app.User(t, u.ID).DiscordID)

	req = testutil.NewJSONRequest("POST", "/api/auth/link-discord", map[string]string{"email": "ghost@example.com", "discord_id": "1"})
	req.Header.Set("X-Bot-Token", botToken)
	rec = do(h, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

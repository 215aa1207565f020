// internal/app/features/authdiscord/handler.go
package authdiscord

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/teamreg/internal/app/features/shared"
	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/store/oauthstate"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Endpoint is Discord's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// UserInfoURL returns the profile of the token's owner.
const UserInfoURL = "https://discord.com/api/users/@me"

const stateTTL = 10 * time.Minute

// StateStore persists OAuth state between start and callback.
type StateStore interface {
	Save(ctx context.Context, state string, userID primitive.ObjectID, returnURL string, expiresAt time.Time) error
	Consume(ctx context.Context, state string) (oauthstate.State, bool, error)
}

// Handler links a signed-in participant to their Discord account.
type Handler struct {
	Identity   *identity.Service
	StateStore StateStore
	AuditLog   *auditlog.Logger
	Log        *zap.Logger

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://reg.example.com/api/auth/discord/callback"

	// Overridable for tests.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	// DoneURL is where the browser lands when no return URL was given.
	DoneURL string
}

// NewHandler creates a Discord OAuth handler.
func NewHandler(
	ids *identity.Service,
	stateStore StateStore,
	audit *auditlog.Logger,
	clientID, clientSecret, baseURL string,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Identity:     ids,
		StateStore:   stateStore,
		AuditLog:     audit,
		Log:          logger,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/api/auth/discord/callback",
		Endpoint:     Endpoint,
		UserInfoURL:  UserInfoURL,
		DoneURL:      "/",
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes:       []string{"identify"},
		Endpoint:     h.Endpoint,
	}
}

// IsConfigured returns true if Discord OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/discord/start                                                  |
| Redirects a signed-in participant to Discord's consent screen.               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		shared.WriteJSON(w, http.StatusNotFound, shared.ErrorBody{
			Error:   "not_configured",
			Message: "Discord linking is not configured.",
		})
		return
	}
	userID, ok := shared.Actor(w, r)
	if !ok {
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		shared.WriteError(w, h.Log, err)
		return
	}

	returnURL := urlutil.SafeReturn(query.Get(r, "return"), "", h.DoneURL)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.StateStore.Save(ctx, state, userID, returnURL, clock.Now(r.Context()).Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		shared.WriteJSON(w, http.StatusInternalServerError, shared.ErrorBody{Error: "internal_error", Message: "Could not start Discord linking."})
		return
	}

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/discord/callback                                               |
| Exchanges the code, reads the Discord id, and stores it on the user          |
| who started the flow.                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Discord OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.finish(w, r, h.DoneURL, "discord_denied")
		return
	}

	state := query.Get(r, "state")
	if state == "" {
		h.finish(w, r, h.DoneURL, "invalid_state")
		return
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()
	st, valid, err := h.StateStore.Consume(sctx, state)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		h.finish(w, r, h.DoneURL, "internal")
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state")
		h.finish(w, r, h.DoneURL, "invalid_state")
		return
	}
	returnURL := urlutil.SafeReturn(st.ReturnURL, "", h.DoneURL)

	code := query.Get(r, "code")
	if code == "" {
		h.finish(w, r, returnURL, "invalid_code")
		return
	}

	gctx, gcancel := context.WithTimeout(ctx, timeouts.Gateway())
	defer gcancel()

	token, err := h.oauth2Config().Exchange(gctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.finish(w, r, returnURL, "token_exchange")
		return
	}

	du, err := h.fetchUser(gctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Discord user", zap.Error(err))
		h.finish(w, r, returnURL, "user_info")
		return
	}

	u, err := h.Identity.LinkDiscordByID(ctx, st.UserID, du.ID)
	if err != nil {
		h.Log.Error("failed to link Discord account",
			zap.String("user_id", st.UserID.Hex()),
			zap.Error(err))
		h.finish(w, r, returnURL, "link_failed")
		return
	}
	h.AuditLog.DiscordLinked(ctx, r, u.ID, du.ID)

	h.Log.Info("Discord account linked",
		zap.String("user_id", u.ID.Hex()),
		zap.String("discord_user", du.Username))

	h.finish(w, r, returnURL, "")
}

// finish redirects to target with a discord=linked marker or an error code.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, target, errCode string) {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	q := u.Query()
	if errCode != "" {
		q.Set("error", errCode)
	} else {
		q.Set("discord", "linked")
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

func (h *Handler) fetchUser(ctx context.Context, token *oauth2.Token) (*discordUser, error) {
	client := h.oauth2Config().Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info returned status %d", resp.StatusCode)
	}

	var du discordUser
	if err := json.NewDecoder(resp.Body).Decode(&du); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	if du.ID == "" {
		return nil, fmt.Errorf("user info has no id")
	}
	return &du, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

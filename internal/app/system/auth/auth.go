package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

const tokenKey = "token"

// SessionUser is the authenticated identity injected into r.Context().
type SessionUser struct {
	ID            string
	Name          string
	Email         string
	Role          string
	TeamID        string
	EmailVerified bool
}

// UserFetcher loads fresh user data for a token subject. It returns nil
// when the user no longer exists.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user and a found flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u directly, bypassing token handling.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

// SessionManager reads credentials from an Authorization bearer header or,
// for browser clients, from a signed session cookie holding the same token.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	issuer  *Issuer
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager builds a SessionManager. The cookie lives as long as
// the tokens it carries.
func NewSessionManager(sessionKey, name, domain string, secure bool, issuer *Issuer, fetcher UserFetcher, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "teamreg-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(issuer.TTL() / time.Second),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if secure {
		store.Options.SameSite = http.SameSiteNoneMode
	}

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, issuer: issuer, fetcher: fetcher, log: logger}, nil
}

// Issuer returns the token issuer.
func (sm *SessionManager) Issuer() *Issuer { return sm.issuer }

// SetToken stores token in the browser session cookie.
func (sm *SessionManager) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	sess, _ := sm.store.Get(r, sm.name)
	sess.Values[tokenKey] = token
	return sess.Save(r, w)
}

// Clear expires the session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	sess, _ := sm.store.Get(r, sm.name)
	delete(sess.Values, tokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

func (sm *SessionManager) tokenFrom(r *http.Request) string {
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return ""
	}
	tok, _ := sess.Values[tokenKey].(string)
	return tok
}

// LoadUser injects the user into context when a valid credential is
// present. Invalid or missing credentials leave the request anonymous.
func (sm *SessionManager) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := sm.tokenFrom(r)
		if tok == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := sm.issuer.Parse(tok, clock.Now(r.Context()))
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		var u *SessionUser
		if sm.fetcher != nil {
			u = sm.fetcher.FetchUser(r.Context(), claims.Subject)
		} else {
			u = &SessionUser{ID: claims.Subject, Role: claims.Role}
		}
		if u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn rejects anonymous requests with 401.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			WriteJSONError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSONError writes the standard error envelope.
func WriteJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"message":%q}`, code, message))
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

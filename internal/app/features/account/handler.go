// internal/app/features/account/handler.go
package account

import (
	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Handler serves the account endpoints under /api/auth.
type Handler struct {
	Identity   *identity.Service
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	AuditLog   *auditlog.Logger
	BotToken   string // shared secret the chat bot presents
	Log        *zap.Logger
}

func NewHandler(ids *identity.Service, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, botToken string, logger *zap.Logger) *Handler {
	if limiter == nil {
		limiter = ratelimit.NewLoginLimiter()
	}
	return &Handler{
		Identity:   ids,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		AuditLog:   audit,
		BotToken:   botToken,
		Log:        logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request bodies                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

type loginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailInput struct {
	Email string `json:"email"`
}

type linkDiscordInput struct {
	Email     string `json:"email" validate:"required,strictemail" label:"Email"`
	DiscordID string `json:"discord_id" validate:"required,max=64" label:"Discord ID"`
}

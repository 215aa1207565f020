// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"time"

	accountfeature "github.com/dalemusser/teamreg/internal/app/features/account"
	adminfeature "github.com/dalemusser/teamreg/internal/app/features/admin"
	authdiscordfeature "github.com/dalemusser/teamreg/internal/app/features/authdiscord"
	dashboardfeature "github.com/dalemusser/teamreg/internal/app/features/dashboard"
	healthfeature "github.com/dalemusser/teamreg/internal/app/features/health"
	joinrequestsfeature "github.com/dalemusser/teamreg/internal/app/features/joinrequests"
	paymentsfeature "github.com/dalemusser/teamreg/internal/app/features/payments"
	registrationfeature "github.com/dalemusser/teamreg/internal/app/features/registration"
	teamsfeature "github.com/dalemusser/teamreg/internal/app/features/teams"
	userstore "github.com/dalemusser/teamreg/internal/app/store/users"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/clock"
	"github.com/dalemusser/teamreg/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed, so deps.Runtime holds the assembled
// services. The router:
//  1. applies request ids, panic recovery, CORS and the per-request clock
//  2. loads the signed-in user from the bearer credential or session cookie
//  3. mounts one feature router per API area under /api
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := deps.Runtime
	if rt == nil || rt.Services == nil {
		return nil, errors.New("build handler: startup did not assemble services")
	}
	set := rt.Services

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure,
		rt.Issuer, userstore.NewFetcher(deps.MongoDatabase), logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	loginLimiter := ratelimit.NewLoginLimiterWithConfig(appCfg.LoginIPLimit, time.Minute, appCfg.LoginEmailLimit, time.Minute)
	webhookLimiter := ratelimit.New(appCfg.WebhookLimit, time.Minute)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Bot-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(clock.Middleware)

	// Loads the SessionUser into context when a credential is present.
	r.Use(sessionMgr.LoadUser)

	// Health check endpoint for load balancers and orchestrators
	var broker healthfeature.BrokerChecker
	if rt.Publisher != nil {
		broker = rt.Publisher
	}
	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.MongoClient, broker, logger)))

	r.Handle("/metrics", rt.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		accountHandler := accountfeature.NewHandler(set.Identity, sessionMgr, loginLimiter, rt.AuditLog, appCfg.BotToken, logger)
		authRouter := accountfeature.Routes(accountHandler)

		discordHandler := authdiscordfeature.NewHandler(set.Identity, rt.OAuthState, rt.AuditLog,
			appCfg.DiscordClientID, appCfg.DiscordClientSecret, appCfg.BaseURL, logger)
		authRouter.Mount("/discord", authdiscordfeature.Routes(discordHandler))
		api.Mount("/auth", authRouter)

		registrationHandler := registrationfeature.NewHandler(set.Orchestrator, set.Roster, rt.AuditLog, logger)
		api.Mount("/registration", registrationfeature.Routes(registrationHandler))

		teamsHandler := teamsfeature.NewHandler(set.Roster, set.Identity, logger)
		api.Mount("/teams", teamsfeature.Routes(teamsHandler))

		joinHandler := joinrequestsfeature.NewHandler(set.JoinFlow, set.Roster, set.Identity, rt.AuditLog, logger)
		api.Mount("/join-requests", joinrequestsfeature.Routes(joinHandler))

		paymentsHandler := paymentsfeature.NewHandler(set.Ledger, rt.AuditLog, webhookLimiter, logger)
		api.Mount("/payments", paymentsfeature.Routes(paymentsHandler))

		dashboardHandler := dashboardfeature.NewHandler(set, logger)
		api.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler))

		adminHandler := adminfeature.NewHandler(set, rt.AuditLog, appCfg.BotToken, logger)
		api.Mount("/admin", adminfeature.Routes(adminHandler))
	})

	return r, nil
}

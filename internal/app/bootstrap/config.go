// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/gateway"
	"github.com/dalemusser/teamreg/internal/app/system/notify"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvPrefix namespaces the app's environment variables (TEAMREG_MONGO_URI...).
const EnvPrefix = "TEAMREG"

const (
	devJWTSecret  = "dev-only-change-me-please-0123456789ABCDEF"
	devSessionKey = "dev-only-session-key-change-me-0123456789"
	minSecretLen  = 32
)

// appConfigKeys defines the configuration keys for the registration backend.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, team_fee_paise, etc.
//   - Environment variables: TEAMREG_MONGO_URI, TEAMREG_TEAM_FEE_PAISE, etc.
//   - Command-line flags: --mongo_uri, --team_fee_paise, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "teamreg", Desc: "MongoDB database name"},

	{Name: "jwt_secret", Default: devJWTSecret, Desc: "HMAC secret for bearer credentials (must be strong in production)"},
	{Name: "jwt_ttl", Default: "168h", Desc: "Credential lifetime"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "teamreg-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},

	// Fees are in paise (1 INR = 100 paise)
	{Name: "team_fee_paise", Default: 50000, Desc: "Registration fee per team, in paise"},
	{Name: "solo_fee_paise", Default: 15000, Desc: "Registration fee per solo participant, in paise"},
	{Name: "max_team_size", Default: 4, Desc: "Maximum roster size including the leader"},

	{Name: "lockout_threshold", Default: 5, Desc: "Consecutive failed logins before an account is locked"},
	{Name: "lockout_duration", Default: "15m", Desc: "How long a locked account stays locked"},
	{Name: "verify_token_ttl", Default: "24h", Desc: "Email verification link lifetime"},

	// Cashfree PG
	{Name: "gateway_base_url", Default: gateway.CashfreeSandboxURL, Desc: "Payment gateway API base URL"},
	{Name: "gateway_app_id", Default: "", Desc: "Payment gateway app id"},
	{Name: "gateway_secret", Default: "", Desc: "Payment gateway secret key"},
	{Name: "gateway_api_version", Default: gateway.DefaultAPIVersion, Desc: "Payment gateway API version header"},

	{Name: "payment_poll_interval", Default: "5m", Desc: "How often to poll the gateway for stale payments (0 disables)"},
	{Name: "payment_poll_age", Default: "10m", Desc: "Payments untouched for this long are polled"},
	{Name: "payment_poll_batch", Default: 50, Desc: "Maximum payments polled per run"},

	{Name: "rabbitmq_url", Default: "", Desc: "RabbitMQ URL for verification emails (blank logs links instead)"},
	{Name: "notify_queue", Default: notify.DefaultQueue, Desc: "Queue verification emails are published to"},
	{Name: "site_name", Default: "Team Registration", Desc: "Event name used in emails"},

	{Name: "bot_token", Default: "", Desc: "Shared token for the chat bot (blank disables bot access)"},
	{Name: "discord_client_id", Default: "", Desc: "Discord OAuth2 client ID"},
	{Name: "discord_client_secret", Default: "", Desc: "Discord OAuth2 client secret"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL for email links and OAuth callbacks"},
	{Name: "cors_origins", Default: "http://localhost:3000", Desc: "Comma-separated allowed CORS origins"},

	{Name: "login_ip_limit", Default: 20, Desc: "Login attempts per IP per minute"},
	{Name: "login_email_limit", Default: 10, Desc: "Login attempts per email per minute"},
	{Name: "webhook_limit", Default: 120, Desc: "Webhook deliveries per IP per minute"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_registration", Default: "all", Desc: "Registration event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_payment", Default: "all", Desc: "Payment event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "timeout_short", Default: "0s", Desc: "Single-document operation timeout (0 keeps the default)"},
	{Name: "timeout_medium", Default: "0s", Desc: "Multi-query operation timeout (0 keeps the default)"},
	{Name: "timeout_long", Default: "0s", Desc: "Multi-collection write timeout (0 keeps the default)"},
	{Name: "timeout_gateway", Default: "0s", Desc: "Payment gateway call timeout (0 keeps the default)"},

	{Name: "organizer_email", Default: "", Desc: "Email of an account to promote to organizer on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// WAFFLE_* and TEAMREG_* environment variables and command-line flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:      appValues.String("mongo_uri"),
		MongoDatabase: appValues.String("mongo_database"),

		JWTSecret:     appValues.String("jwt_secret"),
		JWTTTL:        appValues.Duration("jwt_ttl", 7*24*time.Hour),
		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),

		TeamFeePaise: int64(appValues.Int("team_fee_paise")),
		SoloFeePaise: int64(appValues.Int("solo_fee_paise")),
		MaxTeamSize:  appValues.Int("max_team_size"),

		LockoutThreshold: appValues.Int("lockout_threshold"),
		LockoutDuration:  appValues.Duration("lockout_duration", 15*time.Minute),
		VerifyTokenTTL:   appValues.Duration("verify_token_ttl", 24*time.Hour),

		GatewayBaseURL:    appValues.String("gateway_base_url"),
		GatewayAppID:      appValues.String("gateway_app_id"),
		GatewaySecret:     appValues.String("gateway_secret"),
		GatewayAPIVersion: appValues.String("gateway_api_version"),

		PaymentPollInterval: appValues.Duration("payment_poll_interval", 5*time.Minute),
		PaymentPollAge:      appValues.Duration("payment_poll_age", 10*time.Minute),
		PaymentPollBatch:    appValues.Int("payment_poll_batch"),

		RabbitMQURL: appValues.String("rabbitmq_url"),
		NotifyQueue: appValues.String("notify_queue"),
		SiteName:    appValues.String("site_name"),

		BotToken:            appValues.String("bot_token"),
		DiscordClientID:     appValues.String("discord_client_id"),
		DiscordClientSecret: appValues.String("discord_client_secret"),

		BaseURL:     strings.TrimRight(appValues.String("base_url"), "/"),
		CORSOrigins: splitList(appValues.String("cors_origins")),

		LoginIPLimit:    appValues.Int("login_ip_limit"),
		LoginEmailLimit: appValues.Int("login_email_limit"),
		WebhookLimit:    appValues.Int("webhook_limit"),

		AuditLogAuth:         appValues.String("audit_log_auth"),
		AuditLogRegistration: appValues.String("audit_log_registration"),
		AuditLogPayment:      appValues.String("audit_log_payment"),
		AuditLogAdmin:        appValues.String("audit_log_admin"),

		TimeoutShort:   appValues.Duration("timeout_short", 0),
		TimeoutMedium:  appValues.Duration("timeout_medium", 0),
		TimeoutLong:    appValues.Duration("timeout_long", 0),
		TimeoutGateway: appValues.Duration("timeout_gateway", 0),

		OrganizerEmail: appValues.String("organizer_email"),
	}

	return coreCfg, appCfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting. In production the signing
// secrets must be set and strong, and fees must be positive.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.TeamFeePaise <= 0 || appCfg.SoloFeePaise <= 0 {
		return fmt.Errorf("team_fee_paise and solo_fee_paise must be positive")
	}
	if appCfg.MaxTeamSize < 1 {
		return fmt.Errorf("max_team_size must be at least 1")
	}
	for name, v := range map[string]string{
		"audit_log_auth":         appCfg.AuditLogAuth,
		"audit_log_registration": appCfg.AuditLogRegistration,
		"audit_log_payment":      appCfg.AuditLogPayment,
		"audit_log_admin":        appCfg.AuditLogAdmin,
	} {
		if !auditlog.ValidSetting(v) {
			return fmt.Errorf("%s must be one of all, db, log, off (got %q)", name, v)
		}
	}

	if coreCfg != nil && coreCfg.Env == "prod" {
		if err := strongSecret("jwt_secret", appCfg.JWTSecret, devJWTSecret); err != nil {
			return err
		}
		if err := strongSecret("session_key", appCfg.SessionKey, devSessionKey); err != nil {
			return err
		}
		if appCfg.GatewayAppID == "" || appCfg.GatewaySecret == "" {
			logger.Warn("payment gateway credentials are not set; checkout will fail")
		}
	}
	return nil
}

func strongSecret(name, value, devDefault string) error {
	if value == devDefault {
		return fmt.Errorf("%s must be changed from the development default in production", name)
	}
	if len(value) < minSecretLen {
		return fmt.Errorf("%s must be at least %d characters in production", name, minSecretLen)
	}
	return nil
}

// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework side (ports, TLS, log level); everything specific to event
// registration lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI      string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase string // Database name within MongoDB

	// Credentials
	JWTSecret     string        // HMAC key for the bearer credential
	JWTTTL        time.Duration // credential lifetime (default 7 days)
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions
	SessionDomain string        // Cookie domain (blank means current host)

	// Fees and capacity
	TeamFeePaise int64
	SoloFeePaise int64
	MaxTeamSize  int

	// Account policy
	LockoutThreshold int
	LockoutDuration  time.Duration
	VerifyTokenTTL   time.Duration

	// Payment gateway (Cashfree PG); an empty app id means the gateway is
	// not configured and checkout fails with a gateway error.
	GatewayBaseURL    string
	GatewayAppID      string
	GatewaySecret     string
	GatewayAPIVersion string

	// Background payment status polling
	PaymentPollInterval time.Duration // zero disables the poller
	PaymentPollAge      time.Duration
	PaymentPollBatch    int

	// Verification email delivery; no RabbitMQ URL means links are logged
	RabbitMQURL string
	NotifyQueue string
	SiteName    string

	// Integrations
	BotToken            string // shared token for the chat bot
	DiscordClientID     string
	DiscordClientSecret string

	// Base URL for email links and OAuth callbacks
	BaseURL string // e.g., "https://register.example.com" or "http://localhost:8080"

	// Comma-separated origins the participant frontend is served from
	CORSOrigins []string

	// Login and webhook rate limits (per window)
	LoginIPLimit    int
	LoginEmailLimit int
	WebhookLimit    int

	// Audit logging: all, db, log or off per category
	AuditLogAuth         string
	AuditLogRegistration string
	AuditLogPayment      string
	AuditLogAdmin        string

	// Operation timeouts; zero keeps the default
	TimeoutShort   time.Duration
	TimeoutMedium  time.Duration
	TimeoutLong    time.Duration
	TimeoutGateway time.Duration

	// Organizer bootstrap: promotes this account on startup when it exists
	OrganizerEmail string
}

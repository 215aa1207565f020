// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/ledger"
	"github.com/dalemusser/teamreg/internal/app/service/orchestrator"
	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/dalemusser/teamreg/internal/app/store/audit"
	"github.com/dalemusser/teamreg/internal/app/store/oauthstate"
	"github.com/dalemusser/teamreg/internal/app/system/apperr"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/gateway"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/notify"
	"github.com/dalemusser/teamreg/internal/app/system/tasks"
	"github.com/dalemusser/teamreg/internal/app/system/timeouts"
	"github.com/dalemusser/teamreg/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// assembles the service graph, promotes the configured organizer and starts
// the background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime == nil {
		return errors.New("startup: DBDeps.Runtime is nil")
	}
	rt := deps.Runtime

	timeouts.Configure(timeouts.Config{
		Short:   appCfg.TimeoutShort,
		Medium:  appCfg.TimeoutMedium,
		Long:    appCfg.TimeoutLong,
		Gateway: appCfg.TimeoutGateway,
	})

	rt.Metrics = metrics.New(prometheus.NewRegistry())

	set, pub, err := BuildServices(deps.MongoDatabase, appCfg, rt.Metrics, logger)
	if err != nil {
		return err
	}
	rt.Services = set
	rt.Publisher = pub
	rt.Issuer = newIssuer(appCfg)
	rt.OAuthState = oauthstate.New(deps.MongoDatabase)
	rt.AuditLog = auditlog.New(audit.New(deps.MongoDatabase), logger.Named("audit"), auditlog.Config{
		Auth:         appCfg.AuditLogAuth,
		Registration: appCfg.AuditLogRegistration,
		Payment:      appCfg.AuditLogPayment,
		Admin:        appCfg.AuditLogAdmin,
	})

	if err := ensureOrganizer(ctx, set.Identity, appCfg.OrganizerEmail, logger); err != nil {
		return err
	}

	rt.Scheduler = workers.NewScheduler(logger.Named("jobs"),
		tasks.PaymentPollJob(set.Ledger, logger, appCfg.PaymentPollInterval, appCfg.PaymentPollAge, int64(appCfg.PaymentPollBatch)),
		tasks.VerifyTokenCleanupJob(set.Stores.Users, logger),
		tasks.OAuthStateCleanupJob(rt.OAuthState, logger),
	)
	rt.Scheduler.Start()

	logger.Info("startup complete",
		zap.Int64("team_fee_paise", appCfg.TeamFeePaise),
		zap.Int64("solo_fee_paise", appCfg.SoloFeePaise),
		zap.Int("max_team_size", appCfg.MaxTeamSize),
		zap.Bool("gateway_configured", appCfg.GatewayAppID != ""),
		zap.Bool("broker_configured", pub != nil))
	return nil
}

// BuildServices assembles the domain services over db. The returned
// publisher is nil when no broker is configured; the caller closes it.
func BuildServices(db *mongo.Database, appCfg AppConfig, m *metrics.Metrics, logger *zap.Logger) (*services.Set, *notify.AMQPPublisher, error) {
	notifier, pub, err := newNotifier(appCfg, logger)
	if err != nil {
		return nil, nil, err
	}

	set := services.Build(services.MongoStores(db, logger.Named("txn")), serviceConfig(appCfg), services.Deps{
		Issuer:   newIssuer(appCfg),
		Notifier: notifier,
		Gateway:  newGateway(appCfg, m, logger),
		Metrics:  m,
		Log:      logger,
	})
	return set, pub, nil
}

func newIssuer(appCfg AppConfig) *auth.Issuer {
	return auth.NewIssuer(appCfg.JWTSecret, appCfg.JWTTTL)
}

func serviceConfig(appCfg AppConfig) services.Config {
	idCfg := identity.DefaultConfig()
	if appCfg.VerifyTokenTTL > 0 {
		idCfg.VerifyTTL = appCfg.VerifyTokenTTL
	}
	if appCfg.LockoutThreshold > 0 {
		idCfg.LockoutThreshold = appCfg.LockoutThreshold
	}
	if appCfg.LockoutDuration > 0 {
		idCfg.LockoutDuration = appCfg.LockoutDuration
	}

	return services.Config{
		Identity:    idCfg,
		MaxTeamSize: appCfg.MaxTeamSize,
		Fees: orchestrator.Fees{
			Team: appCfg.TeamFeePaise,
			Solo: appCfg.SoloFeePaise,
		},
		Ledger: ledger.Config{
			// Cashfree substitutes {order_id} on redirect.
			ReturnURL: appCfg.BaseURL + "/payment/return?order_id={order_id}",
			NotifyURL: appCfg.BaseURL + "/api/payments/webhook",
		},
	}
}

func newNotifier(appCfg AppConfig, logger *zap.Logger) (identity.Notifier, *notify.AMQPPublisher, error) {
	cfg := notify.Config{
		Queue:     appCfg.NotifyQueue,
		BaseURL:   appCfg.BaseURL,
		SiteName:  appCfg.SiteName,
		VerifyTTL: appCfg.VerifyTokenTTL,
	}
	if appCfg.RabbitMQURL == "" {
		logger.Info("no RabbitMQ URL configured; verification links will be logged")
		return notify.NewLogNotifier(cfg, logger.Named("notify")), nil, nil
	}

	pub, err := notify.Dial(appCfg.RabbitMQURL)
	if err != nil {
		logger.Error("RabbitMQ connect failed", zap.Error(err))
		return nil, nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	return notify.NewQueueNotifier(pub, cfg, logger.Named("notify")), pub, nil
}

func newGateway(appCfg AppConfig, m *metrics.Metrics, logger *zap.Logger) gateway.Client {
	return gateway.NewCashfree(gateway.CashfreeConfig{
		BaseURL:    appCfg.GatewayBaseURL,
		AppID:      appCfg.GatewayAppID,
		Secret:     appCfg.GatewaySecret,
		APIVersion: appCfg.GatewayAPIVersion,
		Timeout:    appCfg.TimeoutGateway,
	}, m, logger.Named("gateway"))
}

// ensureOrganizer promotes the configured account to organizer. A missing
// account is not an error: the operator can register it and restart, or use
// teamregctl.
func ensureOrganizer(ctx context.Context, ids *identity.Service, email string, logger *zap.Logger) error {
	if email == "" {
		return nil
	}

	u, promoted, err := ids.PromoteOrganizer(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		logger.Warn("organizer account not registered yet", zap.String("email", email))
		return nil
	case errors.Is(err, apperr.ErrAlreadyOnTeam):
		logger.Warn("organizer account is on a team; not promoted", zap.String("email", email))
		return nil
	case err != nil:
		return fmt.Errorf("ensure organizer: %w", err)
	}

	if promoted {
		logger.Info("promoted organizer", zap.String("email", email), zap.String("user_id", u.ID.Hex()))
	}
	return nil
}

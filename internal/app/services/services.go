// Package services assembles the domain services over a set of stores. The
// same assembly serves the HTTP server, the admin CLI and handler tests,
// which pass MongoDB-backed or in-memory stores respectively.
package services

import (
	"context"
	"time"

	"github.com/dalemusser/teamreg/internal/app/service/identity"
	"github.com/dalemusser/teamreg/internal/app/service/joinflow"
	"github.com/dalemusser/teamreg/internal/app/service/ledger"
	"github.com/dalemusser/teamreg/internal/app/service/orchestrator"
	"github.com/dalemusser/teamreg/internal/app/service/roster"
	joinrequeststore "github.com/dalemusser/teamreg/internal/app/store/joinrequests"
	"github.com/dalemusser/teamreg/internal/app/store/memory"
	paymentstore "github.com/dalemusser/teamreg/internal/app/store/payments"
	settingsstore "github.com/dalemusser/teamreg/internal/app/store/settings"
	teamstore "github.com/dalemusser/teamreg/internal/app/store/teams"
	userstore "github.com/dalemusser/teamreg/internal/app/store/users"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/gateway"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/txn"
	"github.com/dalemusser/teamreg/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// UserStore is everything any caller needs from user persistence.
type UserStore interface {
	identity.Users
	roster.Users
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
	CountByRole(ctx context.Context, role string) (int64, error)
	ClearExpiredVerifyTokens(ctx context.Context, now time.Time) (int64, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
}

// TeamStore is everything any caller needs from team persistence.
type TeamStore interface {
	roster.Teams
	SetPayment(ctx context.Context, teamID, paymentID primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// PaymentStore is everything any caller needs from payment persistence.
type PaymentStore interface {
	ledger.Payments
	List(ctx context.Context) ([]models.Payment, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// RequestStore is everything any caller needs from join-request persistence.
type RequestStore interface {
	joinflow.Requests
	roster.Requests
	CountPending(ctx context.Context) (int64, error)
}

// SettingsStore holds the event-wide switches.
type SettingsStore interface {
	orchestrator.Settings
	Exists(ctx context.Context) (bool, error)
}

// Stores groups the persistence a Set is built on.
type Stores struct {
	Users    UserStore
	Teams    TeamStore
	Payments PaymentStore
	Requests RequestStore
	Settings SettingsStore
	Tx       roster.Tx
}

// MongoStores builds the stores over db. Multi-document writes run in a
// transaction when the deployment supports one.
func MongoStores(db *mongo.Database, log *zap.Logger) Stores {
	return Stores{
		Users:    userstore.New(db),
		Teams:    teamstore.New(db),
		Payments: paymentstore.New(db),
		Requests: joinrequeststore.New(db),
		Settings: settingsstore.New(db),
		Tx:       txn.Runner{DB: db, Log: log},
	}
}

// MemoryStores adapts an in-memory database.
func MemoryStores(db *memory.DB) Stores {
	return Stores{
		Users:    db.Users,
		Teams:    db.Teams,
		Payments: db.Payments,
		Requests: db.JoinRequests,
		Settings: db.Settings,
		Tx:       db,
	}
}

// Config carries the policy knobs from application config.
type Config struct {
	Identity    identity.Config
	MaxTeamSize int
	Fees        orchestrator.Fees
	Ledger      ledger.Config
}

// Deps are the collaborators outside persistence.
type Deps struct {
	Issuer   *auth.Issuer
	Notifier identity.Notifier
	Gateway  gateway.Client
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Set is the assembled service graph.
type Set struct {
	Stores       Stores
	Identity     *identity.Service
	Roster       *roster.Service
	JoinFlow     *joinflow.Service
	Ledger       *ledger.Service
	Orchestrator *orchestrator.Service
}

// Build wires the services over st.
func Build(st Stores, cfg Config, d Deps) *Set {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxTeamSize <= 0 {
		cfg.MaxTeamSize = models.DefaultMaxTeamSize
	}

	ids := identity.New(st.Users, d.Notifier, d.Issuer, cfg.Identity, d.Metrics, log.Named("identity"))
	r := roster.New(st.Users, st.Teams, st.Requests, ids, st.Tx, cfg.MaxTeamSize, log.Named("roster"))
	jf := joinflow.New(st.Requests, st.Users, st.Teams, r, d.Metrics, log.Named("joinflow"))
	l := ledger.New(st.Payments, st.Users, r, d.Gateway, cfg.Ledger, d.Metrics, log.Named("ledger"))
	o := orchestrator.New(st.Settings, r, l, st.Teams, cfg.Fees, d.Metrics, log.Named("orchestrator"))

	return &Set{
		Stores:       st,
		Identity:     ids,
		Roster:       r,
		JoinFlow:     jf,
		Ledger:       l,
		Orchestrator: o,
	}
}

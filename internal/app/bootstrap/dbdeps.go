// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/teamreg/internal/app/services"
	"github.com/dalemusser/teamreg/internal/app/store/oauthstate"
	"github.com/dalemusser/teamreg/internal/app/system/auditlog"
	"github.com/dalemusser/teamreg/internal/app/system/auth"
	"github.com/dalemusser/teamreg/internal/app/system/metrics"
	"github.com/dalemusser/teamreg/internal/app/system/notify"
	"github.com/dalemusser/teamreg/internal/app/system/workers"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// WAFFLE passes DBDeps by value to every hook after ConnectDB, so the
// objects built in Startup live behind the Runtime pointer.
type DBDeps struct {
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Runtime *Runtime
}

// Runtime is the service graph and background machinery assembled in Startup
// and consumed by BuildHandler and Shutdown.
type Runtime struct {
	Services   *services.Set
	Issuer     *auth.Issuer
	Metrics    *metrics.Metrics
	AuditLog   *auditlog.Logger
	OAuthState *oauthstate.Store
	Publisher  *notify.AMQPPublisher // nil when verification links are only logged
	Scheduler  *workers.Scheduler
}

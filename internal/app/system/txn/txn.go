// internal/app/system/txn/txn.go
package txn

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// warnedStandalone makes the "transactions unavailable" warning fire once
// per process instead of once per request.
var warnedStandalone atomic.Bool

// Run executes fn inside a multi-document transaction. On servers that do
// not support transactions (standalone mongod in dev), fn runs without one;
// callers that must stay consistent there register compensations themselves.
//
// fn may be called more than once when the driver retries a transient
// transaction error, so it must not have side effects outside the database.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			warnStandalone(log, err)
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warnStandalone(log, err)
		return fn(ctx)
	}
	return err
}

// Runner binds Run to a database so services can depend on a small
// interface instead of *mongo.Database.
type Runner struct {
	DB  *mongo.Database
	Log *zap.Logger
}

// Run implements the services' transaction interface.
func (r Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return Run(ctx, r.DB, r.Log, fn)
}

func warnStandalone(log *zap.Logger, err error) {
	if log == nil || !warnedStandalone.CompareAndSwap(false, true) {
		return
	}
	log.Warn("mongo transactions unavailable; running without a transaction", zap.Error(err))
}

// notSupportedCodes are server error codes meaning "no transactions here":
// IllegalOperation (20), NoSuchTransaction on old servers (51) and
// OperationNotSupportedInTransaction (263).
var notSupportedCodes = map[int32]bool{20: true, 51: true, 263: true}

var notSupportedHints = []string{"transaction", "replica set", "session", "not supported", "illegal operation"}

// IsNotSupported reports whether err means the deployment cannot run
// transactions. Server codes are checked first; otherwise two or more hint
// phrases in the message count as a match.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && notSupportedCodes[ce.Code] {
		return true
	}
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, h := range notSupportedHints {
		if strings.Contains(msg, h) {
			hits++
		}
	}
	return hits >= 2
}

// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"github.com/dalemusser/teamreg/internal/app/service/ledger"
	"go.uber.org/zap"
)

// Job is a unit of periodic background work.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration // per run; zero means the scheduler default
	Run      func(ctx context.Context) error
}

// PendingPoller reconciles stale payments against the gateway.
type PendingPoller interface {
	PollPending(ctx context.Context, olderThan time.Duration, limit int64) (ledger.PollResult, error)
}

// TokenSweeper clears expired verification tokens.
type TokenSweeper interface {
	ClearExpiredVerifyTokens(ctx context.Context, now time.Time) (int64, error)
}

// StateSweeper removes expired OAuth state tokens.
type StateSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// PaymentPollJob asks the gateway about payments that have sat in created or
// pending for longer than age, covering webhooks that never arrived.
func PaymentPollJob(poller PendingPoller, logger *zap.Logger, interval, age time.Duration, batch int64) Job {
	return Job{
		Name:     "payment-status-poll",
		Interval: interval,
		Timeout:  2 * time.Minute,
		Run: func(ctx context.Context) error {
			res, err := poller.PollPending(ctx, age, batch)
			if err != nil {
				return err
			}
			if res.Checked > 0 {
				logger.Info("polled pending payments",
					zap.Int("checked", res.Checked),
					zap.Int("applied", res.Applied),
					zap.Int("errors", res.Errors))
			}
			return nil
		},
	}
}

// VerifyTokenCleanupJob drops verification tokens past their expiry so stale
// links stop resolving to an account.
func VerifyTokenCleanupJob(users TokenSweeper, logger *zap.Logger) Job {
	return Job{
		Name:     "verify-token-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := users.ClearExpiredVerifyTokens(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleared expired verification tokens", zap.Int64("count", count))
			}
			return nil
		},
	}
}

// OAuthStateCleanupJob creates a job that removes expired OAuth state tokens.
// This is a backup for when MongoDB's TTL index cleanup is delayed.
func OAuthStateCleanupJob(stateStore StateSweeper, logger *zap.Logger) Job {
	return Job{
		Name:     "oauth-state-cleanup",
		Interval: 1 * time.Hour,
		Run: func(ctx context.Context) error {
			count, err := stateStore.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			if count > 0 {
				logger.Debug("cleaned up expired OAuth states", zap.Int64("count", count))
			}
			return nil
		},
	}
}

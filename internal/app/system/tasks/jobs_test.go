package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePoller struct {
	age   time.Duration
	batch int64
	res   ledger.PollResult
	err   error
}

func (f *fakePoller) PollPending(_ context.Context, age time.Duration, batch int64) (ledger.PollResult, error) {
	f.age, f.batch = age, batch
	return f.res, f.err
}

type sweeper struct {
	calls int
	err   error
}

func (s *sweeper) ClearExpiredVerifyTokens(context.Context, time.Time) (int64, error) {
	s.calls++
	return 2, s.err
}

func (s *sweeper) CleanupExpired(context.Context) (int64, error) {
	s.calls++
	return 1, s.err
}

func TestPaymentPollJob(t *testing.T) {
	p := &fakePoller{res: ledger.PollResult{Checked: 3, Applied: 1}}
	job := PaymentPollJob(p, zap.NewNop(), time.Minute, 10*time.Minute, 50)

	assert.Equal(t, "payment-status-poll", job.Name)
	assert.Equal(t, time.Minute, job.Interval)
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 10*time.Minute, p.age)
	assert.Equal(t, int64(50), p.batch)

	p.err = errors.New("db down")
	assert.Error(t, job.Run(context.Background()))
}

func TestCleanupJobs(t *testing.T) {
	s := &sweeper{}
	require.NoError(t, VerifyTokenCleanupJob(s, zap.NewNop()).Run(context.Background()))
	require.NoError(t, OAuthStateCleanupJob(s, zap.NewNop()).Run(context.Background()))
	assert.Equal(t, 2, s.calls)

	s.err = errors.New("fail")
	assert.Error(t, VerifyTokenCleanupJob(s, zap.NewNop()).Run(context.Background()))
}

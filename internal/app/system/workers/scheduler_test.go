package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestScheduler_RunsJobsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(zap.NewNop(), tasks.Job{
		Name:     "count",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestScheduler_SkipsDisabledJobs(t *testing.T) {
	called := false
	s := NewScheduler(zap.NewNop(), tasks.Job{
		Name: "off",
		Run: func(ctx context.Context) error {
			called = true
			return nil
		},
	})
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, called)
}

func TestScheduler_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	s := NewScheduler(zap.New(core), tasks.Job{
		Name:     "fails",
		Interval: 5 * time.Millisecond,
		Run:      func(ctx context.Context) error { return errors.New("boom") },
	})
	s.Start()
	require.Eventually(t, func() bool {
		return logs.FilterMessage("background job failed").Len() > 0
	}, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestScheduler_RunOnceAppliesTimeout(t *testing.T) {
	s := NewScheduler(zap.NewNop())
	err := s.RunOnce(context.Background(), tasks.Job{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

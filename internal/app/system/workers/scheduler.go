// internal/app/system/workers/scheduler.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/teamreg/internal/app/system/tasks"
	"go.uber.org/zap"
)

const defaultRunTimeout = 30 * time.Second

// Scheduler runs each job on its own ticker until stopped.
type Scheduler struct {
	jobs   []tasks.Job
	log    *zap.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewScheduler creates a scheduler for jobs. Jobs with a non-positive
// interval are skipped at Start.
func NewScheduler(logger *zap.Logger, jobs ...tasks.Job) *Scheduler {
	return &Scheduler{
		jobs:   jobs,
		log:    logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins one loop per job.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		if job.Interval <= 0 || job.Run == nil {
			s.log.Info("background job disabled", zap.String("job", job.Name))
			continue
		}
		s.wg.Add(1)
		go s.loop(job)
		s.log.Info("background job started",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval))
	}
}

// Stop signals every loop to exit and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.log.Info("background jobs stopped")
}

// RunOnce executes job immediately on the caller's goroutine.
func (s *Scheduler) RunOnce(ctx context.Context, job tasks.Job) error {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return job.Run(ctx)
}

func (s *Scheduler) loop(job tasks.Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.RunOnce(context.Background(), job); err != nil {
				s.log.Error("background job failed", zap.String("job", job.Name), zap.Error(err))
			}
		}
	}
}

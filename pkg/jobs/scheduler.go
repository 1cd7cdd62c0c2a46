package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler enqueues jobs onto a Queue on cron schedules.
type Scheduler struct {
	cron   *cron.Cron
	queue  *Queue
	logger *zap.Logger
}

// NewScheduler returns a scheduler that skips a tick while the previous one is still enqueuing.
func NewScheduler(queue *Queue, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		queue:  queue,
		logger: logger,
	}
}

// Every enqueues a job of jobType whenever spec fires. spec accepts standard
// five-field expressions and descriptors such as @hourly.
func (s *Scheduler) Every(spec, jobType string) error {
	_, err := s.cron.AddFunc(spec, func() {
		id, err := s.queue.Enqueue(Job{Type: jobType})
		if err != nil {
			s.logger.Warn("scheduled enqueue failed", zap.String("type", jobType), zap.Error(err))
			return
		}
		s.logger.Debug("scheduled job enqueued", zap.String("type", jobType), zap.String("job_id", id))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", jobType, spec, err)
	}
	s.logger.Info("job scheduled", zap.String("type", jobType), zap.String("spec", spec))
	return nil
}

// Start runs the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop and waits for running ticks or ctx expiry.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

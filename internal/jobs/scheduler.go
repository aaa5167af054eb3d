// internal/jobs/scheduler.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the background jobs.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	spec    string
	logger  *logrus.Logger
}

// NewScheduler creates a scheduler that runs the sweeper on spec, a cron
// expression or descriptor such as "@every 1h".
func NewScheduler(spec string, sweeper *Sweeper, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		spec:    spec,
		logger:  logger,
	}
}

// Start registers the jobs and starts the scheduler. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.logger.Debug("[CRON] Sweeping orphaned uploads")
		if _, err := s.sweeper.Sweep(ctx); err != nil {
			s.logger.WithError(err).Error("[CRON] Upload sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.WithField("schedule", s.spec).Info("Job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Job scheduler stopped")
}

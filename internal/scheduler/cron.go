package scheduler

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/config"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/service"
	"github.com/robfig/cron/v3"
)

// CronScheduler drives the periodic billing sweep. The sweep only enqueues
// work; all state mutation happens in the worker's handlers, so overlapping
// or repeated sweeps are harmless.
type CronScheduler struct {
	cron    *cron.Cron
	sweeper service.SchedulerService
	cfg     *config.Configuration
	logger  *logger.Logger
}

// NewCronScheduler creates a new cron-driven sweep scheduler
func NewCronScheduler(sweeper service.SchedulerService, cfg *config.Configuration, logger *logger.Logger) *CronScheduler {
	return &CronScheduler{
		cron:    cron.New(),
		sweeper: sweeper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers the sweep job and starts the cron loop
func (s *CronScheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Billing.SweepSchedule, func() {
		now := time.Now().UTC()
		if _, err := s.sweeper.Sweep(ctx, now); err != nil {
			s.logger.Errorw("scheduled sweep failed",
				"error", err,
				"as_of", now,
			)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infow("started billing sweep scheduler",
		"schedule", s.cfg.Billing.SweepSchedule,
	)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish
func (s *CronScheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Infow("stopped billing sweep scheduler")
}

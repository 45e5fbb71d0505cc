package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// SweepResult summarizes one scheduler sweep
type SweepResult struct {
	PeriodsDispatched int `json:"periods_dispatched"`
	RunsDispatched    int `json:"runs_dispatched"`
}

// SchedulerService is the periodic sweep that finds billing periods due for
// transition and billing runs due for execution, and enqueues exactly one
// unit of work per due item. The sweep never mutates billing state itself;
// all mutation happens in the dispatched handlers under their own
// transactions, which is what makes at-least-once dispatch safe.
type SchedulerService interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
}

type schedulerService struct {
	ServiceParams
}

// NewSchedulerService creates a new scheduler service
func NewSchedulerService(params ServiceParams) SchedulerService {
	return &schedulerService{ServiceParams: params}
}

func (s *schedulerService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	result := &SweepResult{}

	periods, err := s.collectDuePeriods(ctx, now)
	if err != nil {
		return nil, err
	}
	runs, err := s.collectDueRuns(ctx, now)
	if err != nil {
		return nil, err
	}

	// Fan out publishes concurrently; each due item is dispatched once per
	// sweep and the handlers absorb redelivery.
	p := pool.New().WithErrors().WithContext(ctx)
	for _, period := range periods {
		period := period
		p.Go(func(ctx context.Context) error {
			return publishTask(ctx, s.Publisher, &types.TaskMessage{
				Kind:            types.TaskKindTransitionPeriod,
				TenantID:        period.TenantID,
				EnvironmentID:   period.EnvironmentID,
				SubscriptionID:  period.SubscriptionID,
				BillingPeriodID: period.ID,
			})
		})
	}
	for _, run := range runs {
		run := run
		p.Go(func(ctx context.Context) error {
			return publishTask(ctx, s.Publisher, &types.TaskMessage{
				Kind:            types.TaskKindExecuteRun,
				TenantID:        run.TenantID,
				EnvironmentID:   run.EnvironmentID,
				SubscriptionID:  run.SubscriptionID,
				BillingPeriodID: run.BillingPeriodID,
				BillingRunID:    run.ID,
			})
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	result.PeriodsDispatched = len(periods)
	result.RunsDispatched = len(runs)

	s.Logger.Infow("scheduler sweep complete",
		"periods_dispatched", result.PeriodsDispatched,
		"runs_dispatched", result.RunsDispatched,
		"as_of", now,
	)
	return result, nil
}

func (s *schedulerService) collectDuePeriods(ctx context.Context, now time.Time) ([]*billingperiod.BillingPeriod, error) {
	var all []*billingperiod.BillingPeriod
	batch := s.Config.Billing.SweepBatchSize
	for offset := 0; ; offset += batch {
		page, err := s.PeriodRepo.ListDueAllTenants(ctx, now, batch, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < batch {
			return all, nil
		}
	}
}

func (s *schedulerService) collectDueRuns(ctx context.Context, now time.Time) ([]*billingrun.BillingRun, error) {
	var all []*billingrun.BillingRun
	batch := s.Config.Billing.SweepBatchSize
	for offset := 0; ; offset += batch {
		page, err := s.RunRepo.ListDueAllTenants(ctx, now, batch, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < batch {
			return all, nil
		}
	}
}

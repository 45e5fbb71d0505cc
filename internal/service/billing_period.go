package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
)

// BillingPeriodService owns the lifecycle of a subscription's billing
// periods. AttemptTransition is the single mutation entry point: it re-reads
// status inside its transaction and treats "already advanced" as success.
type BillingPeriodService interface {
	// AttemptTransition inspects the period against the wall clock and the
	// state of its billing run, and either completes it, cancels it, ensures
	// a run exists for it, or does nothing. Calling it on a terminal period
	// is a no-op, never an error.
	AttemptTransition(ctx context.Context, billingPeriodID string, now time.Time) error

	// StartInitialPeriod creates the first period for a new subscription,
	// honoring any trial window, and schedules the first charge.
	StartInitialPeriod(ctx context.Context, sub *subscription.Subscription, now time.Time) (*billingperiod.BillingPeriod, error)

	// Get returns one billing period
	Get(ctx context.Context, billingPeriodID string) (*billingperiod.BillingPeriod, error)

	// GetCurrent returns the in-progress period of a subscription
	GetCurrent(ctx context.Context, subscriptionID string) (*billingperiod.BillingPeriod, error)

	// ListBySubscription returns all periods of a subscription in time order
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingperiod.BillingPeriod, error)
}

type billingPeriodService struct {
	ServiceParams
}

// NewBillingPeriodService creates a new billing period service
func NewBillingPeriodService(params ServiceParams) BillingPeriodService {
	return &billingPeriodService{ServiceParams: params}
}

func (s *billingPeriodService) StartInitialPeriod(ctx context.Context, sub *subscription.Subscription, now time.Time) (*billingperiod.BillingPeriod, error) {
	start := now
	trial := sub.TrialEnd != nil && sub.TrialEnd.After(now)

	var end time.Time
	if trial {
		end = *sub.TrialEnd
	} else {
		var err error
		end, err = types.NextBillingDate(start, sub.BillingIntervalCount, sub.BillingInterval)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to compute billing period end").
				Mark(ierr.ErrValidation)
		}
	}

	period := &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: sub.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		PeriodStatus:   types.BillingPeriodStatusInProgress,
		Trial:          trial,
		EnvironmentID:  types.GetEnvironmentID(ctx),
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := s.PeriodRepo.Create(ctx, period); err != nil {
		return nil, err
	}

	// Trial windows carry no charge, so no run is scheduled for them; the
	// transition at trial end creates the first paid period and its run.
	if !trial {
		if _, err := s.createScheduledRun(ctx, period); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("started initial billing period",
		"billing_period_id", period.ID,
		"subscription_id", sub.ID,
		"period_start", start,
		"period_end", end,
		"trial", trial,
	)
	return period, nil
}

func (s *billingPeriodService) AttemptTransition(ctx context.Context, billingPeriodID string, now time.Time) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		// Re-read inside the transaction; the status check is the
		// optimistic concurrency guard.
		period, err := s.PeriodRepo.Get(ctx, billingPeriodID)
		if err != nil {
			return err
		}
		if period.PeriodStatus.IsTerminal() {
			s.Logger.Debugw("transition on terminal period is a no-op",
				"billing_period_id", period.ID,
				"period_status", period.PeriodStatus,
			)
			return nil
		}

		sub, err := s.SubRepo.Get(ctx, period.SubscriptionID)
		if err != nil {
			return err
		}

		// Explicit cancellation wins over everything else
		if sub.SubscriptionStatus.IsTerminal() || (sub.CancelAt != nil && !sub.CancelAt.After(now)) {
			return s.cancelPeriod(ctx, period, sub, now)
		}

		runs, err := s.RunRepo.ListByPeriod(ctx, period.ID)
		if err != nil {
			return err
		}

		if succeeded, ok := lo.Find(runs, func(r *billingrun.BillingRun) bool {
			return r.RunStatus == types.BillingRunStatusSucceeded
		}); ok {
			return s.completeAndRoll(ctx, period, sub, succeeded, now)
		}

		if period.Trial && !now.Before(period.PeriodEnd) {
			// Trial elapsed without a charge owed
			return s.completeAndRoll(ctx, period, sub, nil, now)
		}

		if now.Before(period.PeriodEnd) {
			// Not due yet
			return nil
		}

		// Window elapsed with no successful run. If no run exists at all,
		// this is the moment one becomes required.
		if len(runs) == 0 {
			run, err := s.createScheduledRun(ctx, period)
			if err != nil {
				return err
			}
			return publishTask(ctx, s.Publisher, &types.TaskMessage{
				Kind:            types.TaskKindExecuteRun,
				SubscriptionID:  sub.ID,
				BillingPeriodID: period.ID,
				BillingRunID:    run.ID,
			})
		}

		// A run exists but has not succeeded: either it is still working
		// through its retry budget, or it exhausted it (Abandoned/Failed)
		// and the period waits for manual or dunning-flow intervention.
		return nil
	})
}

// completeAndRoll marks the period completed and synchronously creates the
// next contiguous period with its scheduled run.
func (s *billingPeriodService) completeAndRoll(ctx context.Context, period *billingperiod.BillingPeriod, sub *subscription.Subscription, succeededRun *billingrun.BillingRun, now time.Time) error {
	period.PeriodStatus = types.BillingPeriodStatusCompleted
	if err := s.PeriodRepo.Update(ctx, period); err != nil {
		return err
	}

	nextStart := period.PeriodEnd
	nextEnd, err := types.NextBillingDate(nextStart, sub.BillingIntervalCount, sub.BillingInterval)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to compute next billing period end").
			Mark(ierr.ErrValidation)
	}

	next := &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: sub.ID,
		PeriodStart:    nextStart,
		PeriodEnd:      nextEnd,
		PeriodStatus:   types.BillingPeriodStatusInProgress,
		EnvironmentID:  period.EnvironmentID,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := s.PeriodRepo.Create(ctx, next); err != nil {
		return err
	}
	if _, err := s.createScheduledRun(ctx, next); err != nil {
		return err
	}

	sub.CurrentPeriodStart = nextStart
	sub.CurrentPeriodEnd = nextEnd
	if sub.SubscriptionStatus == types.SubscriptionStatusTrialing ||
		sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
		sub.SubscriptionStatus = types.SubscriptionStatusActive
	}
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return err
	}

	s.Logger.Infow("completed billing period and rolled over",
		"billing_period_id", period.ID,
		"next_billing_period_id", next.ID,
		"subscription_id", sub.ID,
		"next_period_start", nextStart,
		"next_period_end", nextEnd,
		"succeeded_run_id", lo.TernaryF(succeededRun != nil,
			func() string { return succeededRun.ID },
			func() string { return "" }),
	)
	return nil
}

// cancelPeriod cancels the period, abandons any active run, and marks the
// subscription cancelled. No next period is created.
func (s *billingPeriodService) cancelPeriod(ctx context.Context, period *billingperiod.BillingPeriod, sub *subscription.Subscription, now time.Time) error {
	period.PeriodStatus = types.BillingPeriodStatusCancelled
	if err := s.PeriodRepo.Update(ctx, period); err != nil {
		return err
	}

	if run, err := s.RunRepo.GetActiveByPeriod(ctx, period.ID); err == nil {
		run.RunStatus = types.BillingRunStatusAbandoned
		run.FailureReason = lo.ToPtr("subscription cancelled before execution")
		if err := s.RunRepo.Update(ctx, run); err != nil {
			return err
		}
	} else if !ierr.IsNotFound(err) {
		return err
	}

	if !sub.SubscriptionStatus.IsTerminal() {
		sub.SubscriptionStatus = types.SubscriptionStatusCancelled
		sub.CancelledAt = lo.ToPtr(now)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	s.Logger.Infow("cancelled billing period",
		"billing_period_id", period.ID,
		"subscription_id", sub.ID,
	)
	return nil
}

// createScheduledRun creates the single scheduled run of a period, due when
// the period's window elapses (charges are made in arrears).
func (s *billingPeriodService) createScheduledRun(ctx context.Context, period *billingperiod.BillingPeriod) (*billingrun.BillingRun, error) {
	run := &billingrun.BillingRun{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		BillingPeriodID: period.ID,
		SubscriptionID:  period.SubscriptionID,
		RunStatus:       types.BillingRunStatusScheduled,
		ScheduledFor:    period.PeriodEnd,
		EnvironmentID:   period.EnvironmentID,
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	if err := s.RunRepo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *billingPeriodService) Get(ctx context.Context, billingPeriodID string) (*billingperiod.BillingPeriod, error) {
	return s.PeriodRepo.Get(ctx, billingPeriodID)
}

func (s *billingPeriodService) GetCurrent(ctx context.Context, subscriptionID string) (*billingperiod.BillingPeriod, error) {
	return s.PeriodRepo.GetInProgressBySubscription(ctx, subscriptionID)
}

func (s *billingPeriodService) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingperiod.BillingPeriod, error) {
	return s.PeriodRepo.ListBySubscription(ctx, subscriptionID)
}

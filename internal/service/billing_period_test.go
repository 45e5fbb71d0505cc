package service

import (
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/domain/subscription"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type BillingPeriodServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingPeriodService
}

func TestBillingPeriodService(t *testing.T) {
	suite.Run(t, new(BillingPeriodServiceSuite))
}

func (s *BillingPeriodServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.service = NewBillingPeriodService(ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		SubRepo:        s.GetStores().SubRepo,
		PeriodRepo:     s.GetStores().PeriodRepo,
		RunRepo:        s.GetStores().RunRepo,
		PaymentRepo:    s.GetStores().PaymentRepo,
		FeeCalcRepo:    s.GetStores().FeeCalcRepo,
		DiscountRepo:   s.GetStores().DiscountRepo,
		CustomerRepo:   s.GetStores().CustomerRepo,
		CheckoutRepo:   s.GetStores().CheckoutRepo,
		Publisher:      s.GetPubSub(),
		Gateway:        s.GetGateway(),
		IdempotencyGen: s.GetIdempotencyGenerator(),
		Cache:          s.GetCache(),
	})
}

func (s *BillingPeriodServiceSuite) createSubscription(status types.SubscriptionStatus) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           "cust_test",
		PlanName:             "pro",
		Amount:               decimal.NewFromInt(100),
		Currency:             "usd",
		BillingInterval:      types.BILLING_INTERVAL_MONTHLY,
		BillingIntervalCount: 1,
		SubscriptionStatus:   status,
		TaxRatePercent:       decimal.Zero,
		BaseModel:            types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *BillingPeriodServiceSuite) createPeriod(sub *subscription.Subscription, start, end time.Time) *billingperiod.BillingPeriod {
	period := &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: sub.ID,
		PeriodStart:    start,
		PeriodEnd:      end,
		PeriodStatus:   types.BillingPeriodStatusInProgress,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PeriodRepo.Create(s.GetContext(), period))
	return period
}

func (s *BillingPeriodServiceSuite) createRun(period *billingperiod.BillingPeriod, status types.BillingRunStatus) *billingrun.BillingRun {
	run := &billingrun.BillingRun{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		BillingPeriodID: period.ID,
		SubscriptionID:  period.SubscriptionID,
		RunStatus:       status,
		ScheduledFor:    period.PeriodEnd,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().RunRepo.Create(s.GetContext(), run))
	return run
}

func (s *BillingPeriodServiceSuite) TestStartInitialPeriodSchedulesRunInArrears() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	period, err := s.service.StartInitialPeriod(s.GetContext(), sub, now)
	s.NoError(err)
	s.Equal(now, period.PeriodStart)
	s.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), period.PeriodEnd)
	s.Equal(types.BillingPeriodStatusInProgress, period.PeriodStatus)
	s.False(period.Trial)

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Len(runs, 1)
	s.Equal(types.BillingRunStatusScheduled, runs[0].RunStatus)
	s.Equal(period.PeriodEnd, runs[0].ScheduledFor)
}

func (s *BillingPeriodServiceSuite) TestStartInitialPeriodWithTrialCarriesNoRun() {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trialEnd := now.Add(14 * 24 * time.Hour)
	sub := s.createSubscription(types.SubscriptionStatusTrialing)
	sub.TrialEnd = &trialEnd
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	period, err := s.service.StartInitialPeriod(s.GetContext(), sub, now)
	s.NoError(err)
	s.True(period.Trial)
	s.Equal(trialEnd, period.PeriodEnd)

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Empty(runs)
}

func (s *BillingPeriodServiceSuite) TestTransitionNotDueIsNoOp() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period := s.createPeriod(sub, start, start.AddDate(0, 1, 0))
	s.createRun(period, types.BillingRunStatusScheduled)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, start.Add(time.Hour)))

	current, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusInProgress, current.PeriodStatus)

	periods, err := s.GetStores().PeriodRepo.ListBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(periods, 1)
}

func (s *BillingPeriodServiceSuite) TestTransitionWithSucceededRunRollsOver() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	period := s.createPeriod(sub, start, end)
	s.createRun(period, types.BillingRunStatusSucceeded)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	completed, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusCompleted, completed.PeriodStatus)

	// The next period is contiguous with the completed one
	next, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(end, next.PeriodStart)
	s.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), next.PeriodEnd)

	nextRuns, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), next.ID)
	s.NoError(err)
	s.Len(nextRuns, 1)
	s.Equal(types.BillingRunStatusScheduled, nextRuns[0].RunStatus)
	s.Equal(next.PeriodEnd, nextRuns[0].ScheduledFor)

	updatedSub, err := s.GetStores().SubRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(next.PeriodStart, updatedSub.CurrentPeriodStart)
	s.Equal(next.PeriodEnd, updatedSub.CurrentPeriodEnd)
}

func (s *BillingPeriodServiceSuite) TestTransitionIsIdempotentOnTerminalPeriod() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	period := s.createPeriod(sub, start, end)
	s.createRun(period, types.BillingRunStatusSucceeded)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))
	// Redelivered task hits the now-completed period
	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	periods, err := s.GetStores().PeriodRepo.ListBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(periods, 2)
}

func (s *BillingPeriodServiceSuite) TestTransitionRecoversPastDueSubscription() {
	sub := s.createSubscription(types.SubscriptionStatusPastDue)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	period := s.createPeriod(sub, start, end)
	s.createRun(period, types.BillingRunStatusSucceeded)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	updatedSub, err := s.GetStores().SubRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updatedSub.SubscriptionStatus)
}

func (s *BillingPeriodServiceSuite) TestTransitionTrialElapsedRollsToPaidPeriod() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trialEnd := start.AddDate(0, 0, 14)
	sub := s.createSubscription(types.SubscriptionStatusTrialing)
	sub.TrialEnd = &trialEnd
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	period := &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: sub.ID,
		PeriodStart:    start,
		PeriodEnd:      trialEnd,
		PeriodStatus:   types.BillingPeriodStatusInProgress,
		Trial:          true,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PeriodRepo.Create(s.GetContext(), period))

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, trialEnd))

	completed, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusCompleted, completed.PeriodStatus)

	next, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(trialEnd, next.PeriodStart)
	s.False(next.Trial)

	// The first paid period carries a scheduled run
	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), next.ID)
	s.NoError(err)
	s.Len(runs, 1)

	updatedSub, err := s.GetStores().SubRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, updatedSub.SubscriptionStatus)
}

func (s *BillingPeriodServiceSuite) TestTransitionCancellationDueCancelsPeriodAndRun() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	sub.CancelAt = lo.ToPtr(end)
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	period := s.createPeriod(sub, start, end)
	run := s.createRun(period, types.BillingRunStatusScheduled)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	cancelled, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusCancelled, cancelled.PeriodStatus)

	abandonedRun, err := s.GetStores().RunRepo.Get(s.GetContext(), run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusAbandoned, abandonedRun.RunStatus)

	updatedSub, err := s.GetStores().SubRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, updatedSub.SubscriptionStatus)
	s.NotNil(updatedSub.CancelledAt)

	// No successor period is created after cancellation
	periods, err := s.GetStores().PeriodRepo.ListBySubscription(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(periods, 1)
}

func (s *BillingPeriodServiceSuite) TestTransitionCancellationNotYetDueProceedsNormally() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	sub.CancelAt = lo.ToPtr(end.AddDate(0, 1, 0))
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	period := s.createPeriod(sub, start, end)
	s.createRun(period, types.BillingRunStatusSucceeded)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	completed, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusCompleted, completed.PeriodStatus)
}

func (s *BillingPeriodServiceSuite) TestTransitionElapsedWithoutRunCreatesAndDispatchesOne() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	period := s.createPeriod(sub, start, end)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end))

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Len(runs, 1)
	s.Equal(types.BillingRunStatusScheduled, runs[0].RunStatus)

	messages := s.GetPubSub().GetMessages(types.TaskKindExecuteRun.Topic())
	s.Len(messages, 1)

	task, err := types.UnmarshalTaskMessage(messages[0].Payload)
	s.NoError(err)
	s.Equal(runs[0].ID, task.BillingRunID)
	s.Equal(types.DefaultTenantID, task.TenantID)
}

func (s *BillingPeriodServiceSuite) TestTransitionElapsedWithAbandonedRunWaits() {
	sub := s.createSubscription(types.SubscriptionStatusPastDue)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	period := s.createPeriod(sub, start, end)
	s.createRun(period, types.BillingRunStatusAbandoned)

	s.NoError(s.service.AttemptTransition(s.GetContext(), period.ID, end.Add(time.Hour)))

	// No new run, no rollover: the period waits for intervention
	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Len(runs, 1)

	current, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusInProgress, current.PeriodStatus)
}

func (s *BillingPeriodServiceSuite) TestMonthEndClamping() {
	sub := s.createSubscription(types.SubscriptionStatusActive)
	now := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)

	period, err := s.service.StartInitialPeriod(s.GetContext(), sub, now)
	s.NoError(err)
	s.Equal(time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC), period.PeriodEnd)
}

package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/stretchr/testify/suite"
)

type SchedulerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service SchedulerService
}

func TestSchedulerService(t *testing.T) {
	suite.Run(t, new(SchedulerServiceSuite))
}

func (s *SchedulerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.service = NewSchedulerService(ServiceParams{
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

func (s *SchedulerServiceSuite) createPeriod(tenantID string, end time.Time, status types.BillingPeriodStatus) *billingperiod.BillingPeriod {
	period := &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		PeriodStart:    end.AddDate(0, -1, 0),
		PeriodEnd:      end,
		PeriodStatus:   status,
		EnvironmentID:  types.GetEnvironmentID(s.GetContext()),
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	period.TenantID = tenantID
	s.NoError(s.GetStores().PeriodRepo.Create(s.GetContext(), period))
	return period
}

func (s *SchedulerServiceSuite) createRun(tenantID string, scheduledFor time.Time, status types.BillingRunStatus) *billingrun.BillingRun {
	run := &billingrun.BillingRun{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		BillingPeriodID: types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID:  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		RunStatus:       status,
		ScheduledFor:    scheduledFor,
		EnvironmentID:   types.GetEnvironmentID(s.GetContext()),
		BaseModel:       types.GetDefaultBaseModel(s.GetContext()),
	}
	run.TenantID = tenantID
	s.NoError(s.GetStores().RunRepo.Create(s.GetContext(), run))
	return run
}

func (s *SchedulerServiceSuite) TestSweepDispatchesDueItems() {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	duePeriod := s.createPeriod(types.DefaultTenantID, now.Add(-time.Hour), types.BillingPeriodStatusInProgress)
	dueRun := s.createRun(types.DefaultTenantID, now.Add(-time.Hour), types.BillingRunStatusScheduled)

	result, err := s.service.Sweep(s.GetContext(), now)
	s.NoError(err)
	s.Equal(1, result.PeriodsDispatched)
	s.Equal(1, result.RunsDispatched)

	periodMsgs := s.GetPubSub().GetMessages(types.TaskKindTransitionPeriod.Topic())
	s.Len(periodMsgs, 1)
	task, err := types.UnmarshalTaskMessage(periodMsgs[0].Payload)
	s.NoError(err)
	s.Equal(duePeriod.ID, task.BillingPeriodID)
	s.Equal(duePeriod.SubscriptionID, task.SubscriptionID)

	runMsgs := s.GetPubSub().GetMessages(types.TaskKindExecuteRun.Topic())
	s.Len(runMsgs, 1)
	task, err = types.UnmarshalTaskMessage(runMsgs[0].Payload)
	s.NoError(err)
	s.Equal(dueRun.ID, task.BillingRunID)
}

func (s *SchedulerServiceSuite) TestSweepExcludesNotDueAndTerminal() {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	s.createPeriod(types.DefaultTenantID, now.Add(time.Hour), types.BillingPeriodStatusInProgress)
	s.createPeriod(types.DefaultTenantID, now.Add(-time.Hour), types.BillingPeriodStatusCompleted)
	s.createRun(types.DefaultTenantID, now.Add(time.Hour), types.BillingRunStatusScheduled)
	s.createRun(types.DefaultTenantID, now.Add(-time.Hour), types.BillingRunStatusAbandoned)
	s.createRun(types.DefaultTenantID, now.Add(-time.Hour), types.BillingRunStatusSucceeded)

	result, err := s.service.Sweep(s.GetContext(), now)
	s.NoError(err)
	s.Equal(0, result.PeriodsDispatched)
	s.Equal(0, result.RunsDispatched)
	s.Empty(s.GetPubSub().GetMessages(types.TaskKindTransitionPeriod.Topic()))
	s.Empty(s.GetPubSub().GetMessages(types.TaskKindExecuteRun.Topic()))
}

func (s *SchedulerServiceSuite) TestSweepCrossesTenantBoundaries() {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	s.createRun(types.DefaultTenantID, now.Add(-time.Hour), types.BillingRunStatusScheduled)
	foreign := s.createRun("tenant_other", now.Add(-time.Hour), types.BillingRunStatusScheduled)

	result, err := s.service.Sweep(s.GetContext(), now)
	s.NoError(err)
	s.Equal(2, result.RunsDispatched)

	// Each task carries its own row's tenant, not the sweeper's
	tenants := map[string]string{}
	for _, msg := range s.GetPubSub().GetMessages(types.TaskKindExecuteRun.Topic()) {
		task, err := types.UnmarshalTaskMessage(msg.Payload)
		s.NoError(err)
		tenants[task.BillingRunID] = task.TenantID
	}
	s.Equal("tenant_other", tenants[foreign.ID])
}

func (s *SchedulerServiceSuite) TestSweepIsMutationFree() {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	period := s.createPeriod(types.DefaultTenantID, now.Add(-time.Hour), types.BillingPeriodStatusInProgress)
	run := s.createRun(types.DefaultTenantID, now.Add(-time.Hour), types.BillingRunStatusScheduled)

	_, err := s.service.Sweep(s.GetContext(), now)
	s.NoError(err)

	after, err := s.GetStores().PeriodRepo.Get(s.GetContext(), period.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusInProgress, after.PeriodStatus)

	afterRun, err := s.GetStores().RunRepo.Get(s.GetContext(), run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusScheduled, afterRun.RunStatus)
	s.Equal(0, afterRun.AttemptCount)
}

func (s *SchedulerServiceSuite) TestSweepPaginatesPastBatchSize() {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	total := s.GetConfig().Billing.SweepBatchSize + 7

	for i := 0; i < total; i++ {
		s.createRun(fmt.Sprintf("tenant_%03d", i%5), now.Add(-time.Minute), types.BillingRunStatusScheduled)
	}

	result, err := s.service.Sweep(s.GetContext(), now)
	s.NoError(err)
	s.Equal(total, result.RunsDispatched)
	s.Len(s.GetPubSub().GetMessages(types.TaskKindExecuteRun.Topic()), total)
}

func (s *SchedulerServiceSuite) TestSweepOnEmptyStateIsQuiet() {
	result, err := s.service.Sweep(s.GetContext(), time.Now().UTC())
	s.NoError(err)
	s.Equal(0, result.PeriodsDispatched)
	s.Equal(0, result.RunsDispatched)
}

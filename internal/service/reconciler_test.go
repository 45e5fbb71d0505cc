package service

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/domain/payment"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentReconcilerSuite struct {
	testutil.BaseServiceTestSuite
	service PaymentReconcilerService
	testData struct {
		sub     *subscription.Subscription
		period  *billingperiod.BillingPeriod
		run     *billingrun.BillingRun
		payment *payment.Payment
	}
}

func TestPaymentReconcilerService(t *testing.T) {
	suite.Run(t, new(PaymentReconcilerSuite))
}

func (s *PaymentReconcilerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
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
	}
	binder := NewDiscountBinderService(params)
	feeCalc := NewFeeCalculationService(params, binder)
	runs := NewBillingRunService(params, feeCalc)
	s.service = NewPaymentReconcilerService(params, runs)

	s.setupTestData()
}

func (s *PaymentReconcilerSuite) setupTestData() {
	ctx := s.GetContext()
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	s.testData.sub = &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           "cust_test",
		PlanName:             "pro",
		Amount:               decimal.NewFromInt(100),
		Currency:             "usd",
		BillingInterval:      types.BILLING_INTERVAL_MONTHLY,
		BillingIntervalCount: 1,
		SubscriptionStatus:   types.SubscriptionStatusActive,
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().SubRepo.Create(ctx, s.testData.sub))

	s.testData.period = &billingperiod.BillingPeriod{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_PERIOD),
		SubscriptionID: s.testData.sub.ID,
		PeriodStart:    now.AddDate(0, -1, 0),
		PeriodEnd:      now,
		PeriodStatus:   types.BillingPeriodStatusInProgress,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().PeriodRepo.Create(ctx, s.testData.period))

	// A run mid-charge, awaiting asynchronous confirmation
	s.testData.run = &billingrun.BillingRun{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLING_RUN),
		BillingPeriodID: s.testData.period.ID,
		SubscriptionID:  s.testData.sub.ID,
		RunStatus:       types.BillingRunStatusInProgress,
		ScheduledFor:    now,
		AttemptCount:    1,
		LastAttemptAt:   lo.ToPtr(now),
		BaseModel:       types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().RunRepo.Create(ctx, s.testData.run))

	s.testData.payment = &payment.Payment{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		BillingRunID:     &s.testData.run.ID,
		IdempotencyKey:   "charge-deadbeef00000000",
		Amount:           decimal.NewFromInt(100),
		Currency:         "usd",
		PaymentStatus:    types.PaymentStatusProcessing,
		GatewayPaymentID: lo.ToPtr("pi_async_1"),
		EnvironmentID:    types.GetEnvironmentID(ctx),
		BaseModel:        types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(ctx, s.testData.payment))
}

func (s *PaymentReconcilerSuite) event(status string) *dto.GatewayEvent {
	return &dto.GatewayEvent{
		EventID:          s.GetUUID(),
		GatewayPaymentID: "pi_async_1",
		Status:           status,
		OccurredAt:       time.Date(2024, 2, 1, 0, 5, 0, 0, time.UTC),
	}
}

func (s *PaymentReconcilerSuite) TestSucceededEventFinalizesPaymentAndRun() {
	ctx := s.GetContext()

	s.NoError(s.service.Reconcile(ctx, s.event("succeeded")))

	pay, err := s.GetStores().PaymentRepo.Get(ctx, s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, pay.PaymentStatus)
	s.NotNil(pay.SucceededAt)
	s.Nil(pay.FailedAt)

	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusSucceeded, run.RunStatus)

	s.Len(s.GetPubSub().GetMessages(types.TaskKindTransitionPeriod.Topic()), 1)
}

func (s *PaymentReconcilerSuite) TestDuplicateEventIsAbsorbed() {
	ctx := s.GetContext()

	s.NoError(s.service.Reconcile(ctx, s.event("succeeded")))
	s.NoError(s.service.Reconcile(ctx, s.event("succeeded")))

	// The duplicate neither errors nor re-propagates
	s.Len(s.GetPubSub().GetMessages(types.TaskKindTransitionPeriod.Topic()), 1)
}

func (s *PaymentReconcilerSuite) TestSucceededStaysSucceededOverLaterFailure() {
	ctx := s.GetContext()

	s.NoError(s.service.Reconcile(ctx, s.event("succeeded")))
	s.NoError(s.service.Reconcile(ctx, s.event("failed")))

	pay, err := s.GetStores().PaymentRepo.Get(ctx, s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, pay.PaymentStatus)

	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusSucceeded, run.RunStatus)
}

func (s *PaymentReconcilerSuite) TestSucceededOverridesEarlierFailure() {
	ctx := s.GetContext()

	s.NoError(s.service.Reconcile(ctx, s.event("failed")))
	s.NoError(s.service.Reconcile(ctx, s.event("succeeded")))

	pay, err := s.GetStores().PaymentRepo.Get(ctx, s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, pay.PaymentStatus)
	s.NotNil(pay.SucceededAt)
	s.Nil(pay.FailedAt)
	s.Nil(pay.ErrorMessage)

	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusSucceeded, run.RunStatus)
}

func (s *PaymentReconcilerSuite) TestFailedEventSchedulesRetry() {
	ctx := s.GetContext()
	ev := s.event("failed")
	ev.ErrorMessage = "insufficient funds"

	s.NoError(s.service.Reconcile(ctx, ev))

	pay, err := s.GetStores().PaymentRepo.Get(ctx, s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusFailed, pay.PaymentStatus)
	s.NotNil(pay.FailedAt)
	s.Equal("insufficient funds", *pay.ErrorMessage)

	// One attempt spent, retries remain: back to scheduled with backoff
	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusScheduled, run.RunStatus)
	s.Equal("insufficient funds", *run.FailureReason)
}

func (s *PaymentReconcilerSuite) TestFailedEventOnExhaustedRunAbandons() {
	ctx := s.GetContext()
	s.testData.run.AttemptCount = s.GetConfig().Billing.MaxAttempts
	s.NoError(s.GetStores().RunRepo.Update(ctx, s.testData.run))

	s.NoError(s.service.Reconcile(ctx, s.event("failed")))

	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusAbandoned, run.RunStatus)

	sub, err := s.GetStores().SubRepo.Get(ctx, s.testData.sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)
}

func (s *PaymentReconcilerSuite) TestProcessingEventTouchesNothingTerminal() {
	ctx := s.GetContext()

	s.NoError(s.service.Reconcile(ctx, s.event("requires_action")))

	pay, err := s.GetStores().PaymentRepo.Get(ctx, s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusRequiresAction, pay.PaymentStatus)

	// Non-terminal updates never touch the run
	run, err := s.GetStores().RunRepo.Get(ctx, s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusInProgress, run.RunStatus)
}

func (s *PaymentReconcilerSuite) TestUnknownGatewayPaymentIsDiscarded() {
	ev := s.event("succeeded")
	ev.GatewayPaymentID = "pi_not_ours"

	s.NoError(s.service.Reconcile(s.GetContext(), ev))

	pay, err := s.GetStores().PaymentRepo.Get(s.GetContext(), s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusProcessing, pay.PaymentStatus)
}

func (s *PaymentReconcilerSuite) TestUnknownStatusIsRejected() {
	err := s.service.Reconcile(s.GetContext(), s.event("exploded"))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentReconcilerSuite) TestMissingPaymentIDIsRejected() {
	ev := s.event("succeeded")
	ev.GatewayPaymentID = ""

	err := s.service.Reconcile(s.GetContext(), ev)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentReconcilerSuite) TestTenantScopeRestoredFromPaymentRow() {
	// Webhook deliveries arrive on an unscoped context
	s.NoError(s.service.Reconcile(context.Background(), s.event("succeeded")))

	pay, err := s.GetStores().PaymentRepo.Get(s.GetContext(), s.testData.payment.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusSucceeded, pay.PaymentStatus)

	run, err := s.GetStores().RunRepo.Get(s.GetContext(), s.testData.run.ID)
	s.NoError(err)
	s.Equal(types.BillingRunStatusSucceeded, run.RunStatus)

	// The transition task carries the restored tenant scope
	messages := s.GetPubSub().GetMessages(types.TaskKindTransitionPeriod.Topic())
	s.Len(messages, 1)
	task, err := types.UnmarshalTaskMessage(messages[0].Payload)
	s.NoError(err)
	s.Equal(types.DefaultTenantID, task.TenantID)
}

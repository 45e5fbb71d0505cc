package service

import (
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/domain/customer"
	"github.com/flexprice/rebill/internal/domain/discount"
	"github.com/flexprice/rebill/internal/domain/payment"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SubscriptionService
	periods  BillingPeriodService
	customer *customer.Customer
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
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
	s.periods = NewBillingPeriodService(params)
	s.service = NewSubscriptionService(params, s.periods, binder)

	s.customer = &customer.Customer{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID: "ext_cust_1",
		Name:       "Test Customer",
		Email:      "test@example.com",
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), s.customer))
}

func (s *SubscriptionServiceSuite) createRequest() *dto.CreateSubscriptionRequest {
	return &dto.CreateSubscriptionRequest{
		CustomerID:      s.customer.ID,
		PlanName:        "pro",
		Amount:          decimal.NewFromInt(100),
		Currency:        "usd",
		BillingInterval: types.BILLING_INTERVAL_MONTHLY,
	}
}

func (s *SubscriptionServiceSuite) TestCreateOpensPeriodAndSchedulesRun() {
	resp, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.SubscriptionStatus)
	s.Equal(1, resp.BillingIntervalCount)
	s.False(resp.CurrentPeriodStart.IsZero())
	s.True(resp.CurrentPeriodEnd.After(resp.CurrentPeriodStart))

	period, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(resp.CurrentPeriodEnd, period.PeriodEnd)

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Len(runs, 1)
	s.Equal(types.BillingRunStatusScheduled, runs[0].RunStatus)
	s.Equal(period.PeriodEnd, runs[0].ScheduledFor)
}

func (s *SubscriptionServiceSuite) TestCreateRequiresCustomer() {
	req := s.createRequest()
	req.CustomerID = "cust_ghost"

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCreateRejectsNegativeAmount() {
	req := s.createRequest()
	req.Amount = decimal.NewFromInt(-1)

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestCreateBindsUsableDiscountCode() {
	d := &discount.Discount{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:          "WELCOME10",
		Active:        true,
		PercentageOff: lo.ToPtr(decimal.NewFromInt(10)),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().DiscountRepo.Create(s.GetContext(), d))

	req := s.createRequest()
	req.DiscountCode = lo.ToPtr("WELCOME10")

	resp, err := s.service.Create(s.GetContext(), req)
	s.NoError(err)
	s.NotNil(resp.DiscountID)
	s.Equal(d.ID, *resp.DiscountID)
}

func (s *SubscriptionServiceSuite) TestCreateIgnoresUnusableDiscountCode() {
	req := s.createRequest()
	req.DiscountCode = lo.ToPtr("NOPE")

	resp, err := s.service.Create(s.GetContext(), req)
	s.NoError(err)
	s.Nil(resp.DiscountID)
}

func (s *SubscriptionServiceSuite) TestCreateWithTrial() {
	trialEnd := time.Now().UTC().Add(14 * 24 * time.Hour)
	req := s.createRequest()
	req.TrialEnd = &trialEnd

	resp, err := s.service.Create(s.GetContext(), req)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, resp.SubscriptionStatus)
	s.Equal(trialEnd, resp.CurrentPeriodEnd)

	period, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.True(period.Trial)

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)
	s.Empty(runs)
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEndOnlyFlags() {
	resp, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)

	cancelled, err := s.service.Cancel(s.GetContext(), resp.ID, &dto.CancelSubscriptionRequest{AtPeriodEnd: true})
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, cancelled.SubscriptionStatus)
	s.NotNil(cancelled.CancelAt)
	s.Equal(resp.CurrentPeriodEnd, *cancelled.CancelAt)

	// The current period keeps running until its end
	period, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Equal(types.BillingPeriodStatusInProgress, period.PeriodStatus)
}

func (s *SubscriptionServiceSuite) TestCancelImmediatelyDrivesTransition() {
	resp, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)

	cancelled, err := s.service.Cancel(s.GetContext(), resp.ID, nil)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, cancelled.SubscriptionStatus)
	s.NotNil(cancelled.CancelledAt)

	_, err = s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), resp.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	periods, err := s.GetStores().PeriodRepo.ListBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(periods, 1)
	s.Equal(types.BillingPeriodStatusCancelled, periods[0].PeriodStatus)

	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), periods[0].ID)
	s.NoError(err)
	s.Len(runs, 1)
	s.Equal(types.BillingRunStatusAbandoned, runs[0].RunStatus)
}

func (s *SubscriptionServiceSuite) TestCancelTerminalIsIdempotent() {
	resp, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)

	_, err = s.service.Cancel(s.GetContext(), resp.ID, nil)
	s.NoError(err)

	again, err := s.service.Cancel(s.GetContext(), resp.ID, nil)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, again.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestListFiltersByCustomer() {
	_, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)

	other := &customer.Customer{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID: "ext_cust_2",
		Name:       "Other Customer",
		Email:      "other@example.com",
		BaseModel:  types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CustomerRepo.Create(s.GetContext(), other))
	otherReq := s.createRequest()
	otherReq.CustomerID = other.ID
	_, err = s.service.Create(s.GetContext(), otherReq)
	s.NoError(err)

	list, err := s.service.List(s.GetContext(), &types.SubscriptionFilter{
		QueryFilter: types.NewDefaultQueryFilter(),
		CustomerID:  lo.ToPtr(s.customer.ID),
	})
	s.NoError(err)
	s.Equal(1, list.Total)
	s.Equal(s.customer.ID, list.Items[0].CustomerID)
}

func (s *SubscriptionServiceSuite) TestListPaymentsWalksPeriodsAndRuns() {
	resp, err := s.service.Create(s.GetContext(), s.createRequest())
	s.NoError(err)

	period, err := s.GetStores().PeriodRepo.GetInProgressBySubscription(s.GetContext(), resp.ID)
	s.NoError(err)
	runs, err := s.GetStores().RunRepo.ListByPeriod(s.GetContext(), period.ID)
	s.NoError(err)

	pay := &payment.Payment{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		BillingRunID:   &runs[0].ID,
		IdempotencyKey: "charge-0011223344556677",
		Amount:         decimal.NewFromInt(100),
		Currency:       "usd",
		PaymentStatus:  types.PaymentStatusSucceeded,
		BaseModel:      types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().PaymentRepo.Create(s.GetContext(), pay))

	payments, err := s.service.ListPayments(s.GetContext(), resp.ID)
	s.NoError(err)
	s.Len(payments, 1)
	s.Equal(pay.ID, payments[0].ID)
}

package service

import (
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/domain/discount"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type FeeCalculationServiceSuite struct {
	testutil.BaseServiceTestSuite
	service FeeCalculationService
	binder  DiscountBinderService
}

func TestFeeCalculationService(t *testing.T) {
	suite.Run(t, new(FeeCalculationServiceSuite))
}

func (s *FeeCalculationServiceSuite) SetupTest() {
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
	s.binder = NewDiscountBinderService(params)
	s.service = NewFeeCalculationService(params, s.binder)
}

func (s *FeeCalculationServiceSuite) percentageDiscount(pct int64) *discount.Discount {
	d := &discount.Discount{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:          "SAVE",
		Active:        true,
		PercentageOff: lo.ToPtr(decimal.NewFromInt(pct)),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().DiscountRepo.Create(s.GetContext(), d))
	return d
}

func (s *FeeCalculationServiceSuite) TestCalculateWithDiscountAndPlatformFee() {
	d := s.percentageDiscount(10)

	breakdown, err := s.service.Calculate(
		decimal.NewFromInt(100),
		d,
		decimal.Zero,
		decimal.NewFromInt(5),
	)
	s.NoError(err)
	s.True(breakdown.Subtotal.Equal(decimal.NewFromInt(100)))
	s.True(breakdown.DiscountAmount.Equal(decimal.NewFromInt(10)))
	s.True(breakdown.TaxAmount.IsZero())
	s.True(breakdown.PlatformFeeAmount.Equal(decimal.RequireFromString("4.5")))
	s.True(breakdown.TotalDue.Equal(decimal.RequireFromString("94.5")))
	s.Equal(d.ID, *breakdown.DiscountID)
}

func (s *FeeCalculationServiceSuite) TestCalculateTaxOnPostDiscountAmount() {
	d := s.percentageDiscount(10)

	breakdown, err := s.service.Calculate(
		decimal.NewFromInt(100),
		d,
		decimal.NewFromInt(10),
		decimal.Zero,
	)
	s.NoError(err)
	s.True(breakdown.TaxAmount.Equal(decimal.NewFromInt(9)))
	s.True(breakdown.TotalDue.Equal(decimal.NewFromInt(99)))
}

func (s *FeeCalculationServiceSuite) TestCalculateWithoutDiscount() {
	breakdown, err := s.service.Calculate(
		decimal.NewFromInt(50),
		nil,
		decimal.Zero,
		decimal.Zero,
	)
	s.NoError(err)
	s.True(breakdown.DiscountAmount.IsZero())
	s.True(breakdown.TotalDue.Equal(decimal.NewFromInt(50)))
	s.Nil(breakdown.DiscountID)
}

func (s *FeeCalculationServiceSuite) TestCalculateIsDeterministic() {
	d := s.percentageDiscount(25)

	first, err := s.service.Calculate(decimal.NewFromInt(200), d, decimal.NewFromInt(8), decimal.NewFromInt(3))
	s.NoError(err)
	second, err := s.service.Calculate(decimal.NewFromInt(200), d, decimal.NewFromInt(8), decimal.NewFromInt(3))
	s.NoError(err)

	s.True(first.TotalDue.Equal(second.TotalDue))
	s.True(first.DiscountAmount.Equal(second.DiscountAmount))
	s.True(first.TaxAmount.Equal(second.TaxAmount))
	s.True(first.PlatformFeeAmount.Equal(second.PlatformFeeAmount))
}

func (s *FeeCalculationServiceSuite) TestCalculateNegativeSubtotalFails() {
	_, err := s.service.Calculate(decimal.NewFromInt(-5), nil, decimal.Zero, decimal.Zero)
	s.Error(err)
	s.True(ierr.IsInvalidPricingInput(err))
}

func (s *FeeCalculationServiceSuite) TestCalculateNegativeRatesFail() {
	_, err := s.service.Calculate(decimal.NewFromInt(100), nil, decimal.NewFromInt(-1), decimal.Zero)
	s.Error(err)
	s.True(ierr.IsInvalidPricingInput(err))

	_, err = s.service.Calculate(decimal.NewFromInt(100), nil, decimal.Zero, decimal.NewFromInt(-1))
	s.Error(err)
	s.True(ierr.IsInvalidPricingInput(err))
}

func (s *FeeCalculationServiceSuite) TestCalculateDiscountClampedAtSubtotal() {
	d := &discount.Discount{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:      "BIG",
		Active:    true,
		AmountOff: lo.ToPtr(decimal.NewFromInt(150)),
		BaseModel: types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().DiscountRepo.Create(s.GetContext(), d))

	breakdown, err := s.service.Calculate(decimal.NewFromInt(100), d, decimal.NewFromInt(10), decimal.NewFromInt(5))
	s.NoError(err)
	s.True(breakdown.DiscountAmount.Equal(decimal.NewFromInt(100)))
	s.True(breakdown.TotalDue.IsZero())
}

func (s *FeeCalculationServiceSuite) TestSnapshotForPeriodPersistsImmutableRows() {
	d := s.percentageDiscount(10)
	sub := &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           "cust_test",
		PlanName:             "pro",
		Amount:               decimal.NewFromInt(100),
		Currency:             "usd",
		BillingInterval:      types.BILLING_INTERVAL_MONTHLY,
		BillingIntervalCount: 1,
		SubscriptionStatus:   types.SubscriptionStatusActive,
		TaxRatePercent:       decimal.NewFromInt(10),
		DiscountID:           &d.ID,
		BaseModel:            types.GetDefaultBaseModel(s.GetContext()),
	}

	periodID := "bp_test_snapshot"
	first, err := s.service.SnapshotForPeriod(s.GetContext(), sub, periodID)
	s.NoError(err)
	s.True(first.DiscountAmount.Equal(decimal.NewFromInt(10)))
	s.True(first.TaxAmount.Equal(decimal.NewFromInt(9)))
	s.True(first.TotalDue.Equal(decimal.NewFromInt(99)))
	s.Equal("usd", first.Currency)

	// Superseding creates a new row; the latest wins
	time.Sleep(time.Millisecond)
	second, err := s.service.SnapshotForPeriod(s.GetContext(), sub, periodID)
	s.NoError(err)
	s.NotEqual(first.ID, second.ID)

	latest, err := s.service.GetLatestForPeriod(s.GetContext(), periodID)
	s.NoError(err)
	s.Equal(second.ID, latest.ID)

	all, err := s.GetStores().FeeCalcRepo.ListByPeriod(s.GetContext(), periodID)
	s.NoError(err)
	s.Len(all, 2)
}

func (s *FeeCalculationServiceSuite) TestSnapshotSkipsUnusableDiscount() {
	d := s.percentageDiscount(10)
	d.Active = false
	s.NoError(s.GetStores().DiscountRepo.Update(s.GetContext(), d))

	sub := &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           "cust_test",
		PlanName:             "pro",
		Amount:               decimal.NewFromInt(100),
		Currency:             "usd",
		BillingInterval:      types.BILLING_INTERVAL_MONTHLY,
		BillingIntervalCount: 1,
		SubscriptionStatus:   types.SubscriptionStatusActive,
		TaxRatePercent:       decimal.Zero,
		DiscountID:           &d.ID,
		BaseModel:            types.GetDefaultBaseModel(s.GetContext()),
	}

	calc, err := s.service.SnapshotForPeriod(s.GetContext(), sub, "bp_test_unusable")
	s.NoError(err)
	s.True(calc.DiscountAmount.IsZero())
	s.True(calc.TotalDue.Equal(decimal.NewFromInt(100)))
	s.Nil(calc.DiscountID)
}

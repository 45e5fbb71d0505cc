package service

import (
	"context"
	"testing"
	"time"

	"github.com/flexprice/rebill/internal/domain/checkout"
	"github.com/flexprice/rebill/internal/domain/discount"
	"github.com/flexprice/rebill/internal/testutil"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DiscountBinderSuite struct {
	testutil.BaseServiceTestSuite
	service DiscountBinderService
	session *checkout.Session
}

func TestDiscountBinderService(t *testing.T) {
	suite.Run(t, new(DiscountBinderSuite))
}

func (s *DiscountBinderSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.service = NewDiscountBinderService(ServiceParams{
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

	s.session = &checkout.Session{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHECKOUT),
		CustomerID:           "cust_test",
		PlanName:             "pro",
		Amount:               decimal.NewFromInt(100),
		Currency:             "usd",
		BillingInterval:      types.BILLING_INTERVAL_MONTHLY,
		BillingIntervalCount: 1,
		SessionStatus:        checkout.SessionStatusOpen,
		ExpiresAt:            time.Now().UTC().Add(30 * time.Minute),
		BaseModel:            types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().CheckoutRepo.Create(s.GetContext(), s.session))
}

func (s *DiscountBinderSuite) createDiscount(code string, active bool) *discount.Discount {
	d := &discount.Discount{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:          code,
		Active:        active,
		PercentageOff: lo.ToPtr(decimal.NewFromInt(10)),
		BaseModel:     types.GetDefaultBaseModel(s.GetContext()),
	}
	s.NoError(s.GetStores().DiscountRepo.Create(s.GetContext(), d))
	return d
}

func (s *DiscountBinderSuite) TestBindValidCode() {
	d := s.createDiscount("WELCOME10", true)

	bound, err := s.service.Bind(s.GetContext(), s.session.ID, "WELCOME10")
	s.NoError(err)
	s.NotNil(bound)
	s.Equal(d.ID, bound.ID)

	session, err := s.GetStores().CheckoutRepo.Get(s.GetContext(), s.session.ID)
	s.NoError(err)
	s.NotNil(session.DiscountID)
	s.Equal(d.ID, *session.DiscountID)
}

func (s *DiscountBinderSuite) TestBindUnknownCodeAppliesNothing() {
	bound, err := s.service.Bind(s.GetContext(), s.session.ID, "NOPE")
	s.NoError(err)
	s.Nil(bound)

	session, err := s.GetStores().CheckoutRepo.Get(s.GetContext(), s.session.ID)
	s.NoError(err)
	s.Nil(session.DiscountID)
}

func (s *DiscountBinderSuite) TestBindInactiveCodeAppliesNothing() {
	s.createDiscount("DISABLED", false)

	bound, err := s.service.Bind(s.GetContext(), s.session.ID, "DISABLED")
	s.NoError(err)
	s.Nil(bound)
}

func (s *DiscountBinderSuite) TestBindExpiredCodeAppliesNothing() {
	d := s.createDiscount("EXPIRED", true)
	d.ExpiresAt = lo.ToPtr(time.Now().UTC().Add(-time.Hour))
	s.NoError(s.GetStores().DiscountRepo.Update(s.GetContext(), d))

	bound, err := s.service.Bind(s.GetContext(), s.session.ID, "EXPIRED")
	s.NoError(err)
	s.Nil(bound)
}

func (s *DiscountBinderSuite) TestBindForeignTenantCodeAppliesNothing() {
	// A code owned by another tenant must be indistinguishable from an
	// absent one
	otherCtx := context.Background()
	otherCtx = types.SetTenantID(otherCtx, "tenant_other")
	otherCtx = types.SetUserID(otherCtx, types.DefaultUserID)
	otherCtx = types.SetEnvironmentID(otherCtx, types.GetEnvironmentID(s.GetContext()))

	d := &discount.Discount{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Code:          "FOREIGN",
		Active:        true,
		PercentageOff: lo.ToPtr(decimal.NewFromInt(10)),
		BaseModel:     types.GetDefaultBaseModel(otherCtx),
	}
	s.NoError(s.GetStores().DiscountRepo.Create(otherCtx, d))

	bound, err := s.service.Bind(s.GetContext(), s.session.ID, "FOREIGN")
	s.NoError(err)
	s.Nil(bound)
}

func (s *DiscountBinderSuite) TestRebindIsLastWriterWins() {
	first := s.createDiscount("FIRST", true)
	second := s.createDiscount("SECOND", true)

	_, err := s.service.Bind(s.GetContext(), s.session.ID, "FIRST")
	s.NoError(err)
	_, err = s.service.Bind(s.GetContext(), s.session.ID, "SECOND")
	s.NoError(err)

	session, err := s.GetStores().CheckoutRepo.Get(s.GetContext(), s.session.ID)
	s.NoError(err)
	s.Equal(second.ID, *session.DiscountID)
	s.NotEqual(first.ID, *session.DiscountID)
}

func (s *DiscountBinderSuite) TestUnbindClearsDiscount() {
	s.createDiscount("CLEARME", true)
	_, err := s.service.Bind(s.GetContext(), s.session.ID, "CLEARME")
	s.NoError(err)

	s.NoError(s.service.Unbind(s.GetContext(), s.session.ID))

	session, err := s.GetStores().CheckoutRepo.Get(s.GetContext(), s.session.ID)
	s.NoError(err)
	s.Nil(session.DiscountID)

	// Unbinding an already clean session stays a no-op
	s.NoError(s.service.Unbind(s.GetContext(), s.session.ID))
}

func (s *DiscountBinderSuite) TestResolveNilAndMissing() {
	d, err := s.service.Resolve(s.GetContext(), nil)
	s.NoError(err)
	s.Nil(d)

	d, err = s.service.Resolve(s.GetContext(), lo.ToPtr("disc_gone"))
	s.NoError(err)
	s.Nil(d)
}

func (s *DiscountBinderSuite) TestResolveUnusableReturnsNil() {
	d := s.createDiscount("LAPSED", true)
	d.Active = false
	s.NoError(s.GetStores().DiscountRepo.Update(s.GetContext(), d))

	resolved, err := s.service.Resolve(s.GetContext(), &d.ID)
	s.NoError(err)
	s.Nil(resolved)
}

func (s *DiscountBinderSuite) TestResolveUsable() {
	d := s.createDiscount("KEEP", true)

	resolved, err := s.service.Resolve(s.GetContext(), &d.ID)
	s.NoError(err)
	s.NotNil(resolved)
	s.Equal(d.ID, resolved.ID)

	// Second resolve is served from cache
	resolved, err = s.service.Resolve(s.GetContext(), &d.ID)
	s.NoError(err)
	s.NotNil(resolved)
}

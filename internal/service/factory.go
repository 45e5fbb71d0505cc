package service

import (
	"github.com/flexprice/rebill/internal/cache"
	"github.com/flexprice/rebill/internal/config"
	"github.com/flexprice/rebill/internal/domain/billingperiod"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/domain/checkout"
	"github.com/flexprice/rebill/internal/domain/customer"
	"github.com/flexprice/rebill/internal/domain/discount"
	"github.com/flexprice/rebill/internal/domain/feecalculation"
	"github.com/flexprice/rebill/internal/domain/payment"
	"github.com/flexprice/rebill/internal/domain/subscription"
	"github.com/flexprice/rebill/internal/gateway"
	"github.com/flexprice/rebill/internal/idempotency"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/pubsub"
)

// ServiceParams holds common dependencies for all services. Services receive
// the whole bundle so constructors stay stable as dependencies grow.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	SubRepo      subscription.Repository
	PeriodRepo   billingperiod.Repository
	RunRepo      billingrun.Repository
	PaymentRepo  payment.Repository
	FeeCalcRepo  feecalculation.Repository
	DiscountRepo discount.Repository
	CustomerRepo customer.Repository
	CheckoutRepo checkout.Repository

	// Infra
	Publisher      pubsub.Publisher
	Gateway        gateway.Gateway
	IdempotencyGen *idempotency.Generator
	Cache          cache.Cache
}

// NewServiceParams assembles the service dependency bundle
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	subRepo subscription.Repository,
	periodRepo billingperiod.Repository,
	runRepo billingrun.Repository,
	paymentRepo payment.Repository,
	feeCalcRepo feecalculation.Repository,
	discountRepo discount.Repository,
	customerRepo customer.Repository,
	checkoutRepo checkout.Repository,
	publisher pubsub.Publisher,
	gw gateway.Gateway,
	idempotencyGen *idempotency.Generator,
	cacheStore cache.Cache,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		SubRepo:        subRepo,
		PeriodRepo:     periodRepo,
		RunRepo:        runRepo,
		PaymentRepo:    paymentRepo,
		FeeCalcRepo:    feeCalcRepo,
		DiscountRepo:   discountRepo,
		CustomerRepo:   customerRepo,
		CheckoutRepo:   checkoutRepo,
		Publisher:      publisher,
		Gateway:        gw,
		IdempotencyGen: idempotencyGen,
		Cache:          cacheStore,
	}
}

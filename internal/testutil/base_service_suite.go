package testutil

import (
	"context"
	"time"

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
	"github.com/flexprice/rebill/internal/idempotency"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	SubRepo      subscription.Repository
	PeriodRepo   billingperiod.Repository
	RunRepo      billingrun.Repository
	PaymentRepo  payment.Repository
	FeeCalcRepo  feecalculation.Repository
	DiscountRepo discount.Repository
	CustomerRepo customer.Repository
	CheckoutRepo checkout.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx            context.Context
	stores         Stores
	pubsub         *InMemoryPubSub
	gateway        *FakeGateway
	db             postgres.IClient
	logger         *logger.Logger
	config         *config.Configuration
	cache          cache.Cache
	idempotencyGen *idempotency.Generator
	now            time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = types.LogLevelInfo

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	s.idempotencyGen = idempotency.NewGenerator()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = SetupContext()
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		SubRepo:      NewInMemorySubscriptionStore(),
		PeriodRepo:   NewInMemoryBillingPeriodStore(),
		RunRepo:      NewInMemoryBillingRunStore(),
		PaymentRepo:  NewInMemoryPaymentStore(),
		FeeCalcRepo:  NewInMemoryFeeCalculationStore(),
		DiscountRepo: NewInMemoryDiscountStore(),
		CustomerRepo: NewInMemoryCustomerStore(),
		CheckoutRepo: NewInMemoryCheckoutStore(),
	}

	s.db = NewMockPostgresClient(s.logger)
	s.pubsub = NewInMemoryPubSub()
	s.gateway = NewFakeGateway()
	s.cache = cache.NewInMemoryCache()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.SubRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.PeriodRepo.(*InMemoryBillingPeriodStore).Clear()
	s.stores.RunRepo.(*InMemoryBillingRunStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.FeeCalcRepo.(*InMemoryFeeCalculationStore).Clear()
	s.stores.DiscountRepo.(*InMemoryDiscountStore).Clear()
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.CheckoutRepo.(*InMemoryCheckoutStore).Clear()
	s.gateway.Clear()
	s.pubsub.ClearMessages()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetPubSub returns the recording in-memory pubsub
func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubsub
}

// GetGateway returns the scripted fake payment gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetIdempotencyGenerator returns the deterministic key generator
func (s *BaseServiceTestSuite) GetIdempotencyGenerator() *idempotency.Generator {
	return s.idempotencyGen
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}

package main

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/api"
	"github.com/flexprice/rebill/internal/api/cron"
	v1 "github.com/flexprice/rebill/internal/api/v1"
	"github.com/flexprice/rebill/internal/cache"
	"github.com/flexprice/rebill/internal/config"
	"github.com/flexprice/rebill/internal/gateway"
	stripegw "github.com/flexprice/rebill/internal/gateway/stripe"
	"github.com/flexprice/rebill/internal/idempotency"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/pubsub"
	kafkaPubsub "github.com/flexprice/rebill/internal/pubsub/kafka"
	memoryPubsub "github.com/flexprice/rebill/internal/pubsub/memory"
	pubsubRouter "github.com/flexprice/rebill/internal/pubsub/router"
	"github.com/flexprice/rebill/internal/repository"
	"github.com/flexprice/rebill/internal/scheduler"
	"github.com/flexprice/rebill/internal/service"
	"github.com/flexprice/rebill/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/fx"
)

func init() {
	// All billing date math assumes UTC
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Cache
			cache.NewInMemoryCache,

			// Postgres
			postgres.NewDB,
			provideDBClient,

			// Task queue
			providePubSub,
			providePublisher,
			provideSubscriber,
			pubsubRouter.NewRouter,

			// Payment gateway
			provideGateway,

			// Idempotency key generation
			idempotency.NewGenerator,

			// Repositories
			repository.NewSubscriptionRepository,
			repository.NewBillingPeriodRepository,
			repository.NewBillingRunRepository,
			repository.NewPaymentRepository,
			repository.NewFeeCalculationRepository,
			repository.NewDiscountRepository,
			repository.NewCustomerRepository,
			repository.NewCheckoutRepository,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewCustomerService,
			service.NewDiscountBinderService,
			service.NewFeeCalculationService,
			service.NewBillingPeriodService,
			service.NewBillingRunService,
			service.NewPaymentReconcilerService,
			service.NewSchedulerService,
			service.NewSubscriptionService,
			service.NewCheckoutService,
		),
	)

	// API, worker and scheduler
	opts = append(opts,
		fx.Provide(
			worker.NewWorker,
			scheduler.NewCronScheduler,
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideDBClient(db *sqlx.DB, log *logger.Logger) postgres.IClient {
	return postgres.NewClient(db, log)
}

func providePubSub(cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.PubSub.Backend {
	case "kafka":
		return kafkaPubsub.NewPubSub(cfg, log)
	default:
		return memoryPubsub.NewPubSub(log), nil
	}
}

func providePublisher(ps pubsub.PubSub) pubsub.Publisher {
	return ps
}

func provideSubscriber(ps pubsub.PubSub) pubsub.Subscriber {
	return ps
}

func provideGateway(cfg *config.Configuration, log *logger.Logger) gateway.Gateway {
	return stripegw.NewClient(cfg, log)
}

func provideHandlers(
	cfg *config.Configuration,
	log *logger.Logger,
	customerService service.CustomerService,
	subscriptionService service.SubscriptionService,
	periodService service.BillingPeriodService,
	runService service.BillingRunService,
	checkoutService service.CheckoutService,
	reconcilerService service.PaymentReconcilerService,
	schedulerService service.SchedulerService,
) api.Handlers {
	return api.Handlers{
		Health:       v1.NewHealthHandler(),
		Customer:     v1.NewCustomerHandler(customerService, log),
		Subscription: v1.NewSubscriptionHandler(subscriptionService, periodService, runService, log),
		Checkout:     v1.NewCheckoutHandler(checkoutService, log),
		Webhook:      v1.NewWebhookHandler(reconcilerService, cfg, log),
		CronBilling:  cron.NewBillingHandler(schedulerService, log),
	}
}

func provideRouter(handlers api.Handlers) *gin.Engine {
	return api.NewRouter(handlers)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	w *worker.Worker,
	cronScheduler *scheduler.CronScheduler,
	log *logger.Logger,
) {
	startAPIServer(lc, r, cfg, log)
	startWorker(lc, w, log)
	startCronScheduler(lc, cronScheduler, log)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down API server")
			return nil
		},
	})
}

func startWorker(lc fx.Lifecycle, w *worker.Worker, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := w.Run(context.Background()); err != nil {
					log.Errorw("billing task worker stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping billing task worker")
			return w.Close()
		},
	})
}

func startCronScheduler(lc fx.Lifecycle, s *scheduler.CronScheduler, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// The lifecycle context is only valid for startup; sweeps run
			// against a background context for the process lifetime
			return s.Start(context.Background())
		},
		OnStop: func(ctx context.Context) error {
			s.Stop()
			return nil
		},
	})
}

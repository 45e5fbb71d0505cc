package router

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/flexprice/rebill/internal/config"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/pubsub"
)

// Router manages all task message routing
type Router struct {
	router *message.Router
	logger *logger.Logger
	config *config.WorkerConfig
}

// NewRouter creates a new message router with delivery-level retry middleware.
// Handlers stay idempotent, so redelivery after a crash or retry is safe.
func NewRouter(cfg *config.Configuration, logger *logger.Logger) (*Router, error) {
	router, err := message.NewRouter(
		message.RouterConfig{},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, err
	}

	router.AddMiddleware(
		middleware.Recoverer,     // Recover from panics
		middleware.CorrelationID, // Add correlation IDs
		middleware.Retry{
			MaxRetries:          cfg.Worker.MaxRetries,
			InitialInterval:     cfg.Worker.InitialInterval,
			MaxInterval:         cfg.Worker.MaxInterval,
			Multiplier:          cfg.Worker.Multiplier,
			MaxElapsedTime:      cfg.Worker.MaxElapsedTime,
			RandomizationFactor: 0.5,
			Logger:              watermill.NewStdLogger(false, false),
			OnRetryHook: func(retryNum int, delay time.Duration) {
				logger.Infow("retrying message",
					"retry_number", retryNum,
					"max_retries", cfg.Worker.MaxRetries,
					"delay", delay,
				)
			},
		}.Middleware,
	)

	return &Router{
		router: router,
		logger: logger,
		config: &cfg.Worker,
	}, nil
}

// AddNoPublishHandler adds a handler that doesn't publish messages
func (r *Router) AddNoPublishHandler(
	handlerName string,
	topicName string,
	subscriber pubsub.Subscriber,
	handlerFunc func(msg *message.Message) error,
) {
	r.router.AddNoPublisherHandler(
		handlerName,
		topicName,
		subscriberAdapter{subscriber},
		handlerFunc,
	)
}

// Run starts the router and blocks until the context is cancelled
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Close gracefully shuts down the router
func (r *Router) Close() error {
	return r.router.Close()
}

// subscriberAdapter adapts the internal pubsub.Subscriber to watermill's
// message.Subscriber
type subscriberAdapter struct {
	sub pubsub.Subscriber
}

func (a subscriberAdapter) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return a.sub.Subscribe(ctx, topic)
}

func (a subscriberAdapter) Close() error {
	return a.sub.Close()
}

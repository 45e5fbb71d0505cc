package api

import (
	"github.com/flexprice/rebill/internal/api/cron"
	v1 "github.com/flexprice/rebill/internal/api/v1"
	"github.com/flexprice/rebill/internal/rest/middleware"
	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Health       *v1.HealthHandler
	Customer     *v1.CustomerHandler
	Subscription *v1.SubscriptionHandler
	Checkout     *v1.CheckoutHandler
	Webhook      *v1.WebhookHandler
	CronBilling  *cron.BillingHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Health)

	// Webhook ingress authenticates the gateway signature instead of
	// tenant headers; tenant scope is restored from the payment row
	router.POST("/webhooks/stripe", handlers.Webhook.HandleStripeWebhook)

	v1Group := router.Group("/v1", middleware.TenantMiddleware)
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	customers := router.Group("/customers")
	{
		customers.POST("", handlers.Customer.CreateCustomer)
		customers.GET("/:id", handlers.Customer.GetCustomer)
		customers.PUT("/:id", handlers.Customer.UpdateCustomer)
	}

	subscriptions := router.Group("/subscriptions")
	{
		subscriptions.POST("", handlers.Subscription.CreateSubscription)
		subscriptions.GET("", handlers.Subscription.ListSubscriptions)
		subscriptions.GET("/:id", handlers.Subscription.GetSubscription)
		subscriptions.POST("/:id/cancel", handlers.Subscription.CancelSubscription)
		subscriptions.GET("/:id/periods", handlers.Subscription.ListPeriods)
		subscriptions.GET("/:id/periods/current", handlers.Subscription.GetCurrentPeriod)
		subscriptions.GET("/:id/payments", handlers.Subscription.ListPayments)
	}

	periods := router.Group("/periods")
	{
		periods.GET("/:period_id/runs", handlers.Subscription.ListRuns)
	}

	checkout := router.Group("/checkout/sessions")
	{
		checkout.POST("", handlers.Checkout.CreateSession)
		checkout.GET("/:id", handlers.Checkout.GetSession)
		checkout.POST("/:id/discount", handlers.Checkout.BindDiscount)
		checkout.DELETE("/:id/discount", handlers.Checkout.UnbindDiscount)
		checkout.POST("/:id/complete", handlers.Checkout.CompleteSession)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	billing := router.Group("/billing")
	{
		billing.POST("/sweep", handlers.CronBilling.Sweep)
	}
}

package stripe

import (
	"context"

	"github.com/flexprice/rebill/internal/config"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/gateway"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"golang.org/x/time/rate"
)

// Client submits charges through Stripe PaymentIntents. A local rate limiter
// keeps the executor under Stripe's per-account write limit.
type Client struct {
	stripeClient *stripe.Client
	limiter      *rate.Limiter
	logger       *logger.Logger
}

// NewClient creates a new Stripe gateway client
func NewClient(cfg *config.Configuration, logger *logger.Logger) *Client {
	return &Client{
		stripeClient: stripe.NewClient(cfg.Stripe.SecretKey, nil),
		limiter:      rate.NewLimiter(rate.Limit(cfg.Stripe.RequestsPerSecond), cfg.Stripe.Burst),
		logger:       logger,
	}
}

// SubmitCharge creates and confirms an off-session PaymentIntent against the
// customer's saved payment method. The idempotency key makes resubmission
// under the same key return the original intent.
func (c *Client) SubmitCharge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Charge submission cancelled while waiting for rate limit").
			Mark(ierr.ErrGatewayUnavailable)
	}

	amountInCents := req.Amount.Mul(decimal.NewFromInt(100)).IntPart()
	params := &stripe.PaymentIntentCreateParams{
		Amount:        stripe.Int64(amountInCents),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.GatewayCustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
		Metadata:      req.Metadata,
	}
	params.SetIdempotencyKey(req.IdempotencyKey)

	paymentIntent, err := c.stripeClient.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		if stripeErr, ok := err.(*stripe.Error); ok {
			switch stripeErr.Code {
			case stripe.ErrorCodeCardDeclined, stripe.ErrorCodeExpiredCard, stripe.ErrorCodeIncorrectCVC:
				return nil, ierr.NewError("payment method declined").
					WithHint("The saved payment method was declined").
					WithReportableDetails(map[string]interface{}{
						"gateway_customer_id": req.GatewayCustomerID,
						"payment_method_id":   req.PaymentMethodID,
						"stripe_error_code":   stripeErr.Code,
					}).
					Mark(ierr.ErrInvalidOperation)
			case stripe.ErrorCodeAuthenticationRequired:
				return nil, ierr.NewError("payment requires authentication").
					WithHint("Customer must return to complete payment authentication").
					WithReportableDetails(map[string]interface{}{
						"gateway_customer_id": req.GatewayCustomerID,
						"payment_method_id":   req.PaymentMethodID,
						"stripe_error_code":   stripeErr.Code,
					}).
					Mark(ierr.ErrInvalidOperation)
			}
			if stripeErr.HTTPStatusCode >= 500 || stripeErr.Type == stripe.ErrorTypeAPI {
				return nil, ierr.WithError(err).
					WithHint("Stripe is temporarily unavailable").
					Mark(ierr.ErrGatewayUnavailable)
			}
			return nil, ierr.WithError(err).
				WithHint("Stripe rejected the charge").
				WithReportableDetails(map[string]interface{}{
					"stripe_error_code": stripeErr.Code,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		// Transport-level failure, no response from Stripe
		c.logger.Errorw("failed to create payment intent",
			"error", err,
			"gateway_customer_id", req.GatewayCustomerID,
			"amount", req.Amount.String(),
		)
		return nil, ierr.WithError(err).
			WithHint("Unable to reach Stripe").
			Mark(ierr.ErrGatewayUnavailable)
	}

	c.logger.Infow("submitted payment intent",
		"payment_intent_id", paymentIntent.ID,
		"status", paymentIntent.Status,
		"amount", req.Amount.String(),
		"currency", req.Currency,
	)

	return &gateway.ChargeResult{
		GatewayPaymentID: paymentIntent.ID,
		Status:           statusFromIntent(paymentIntent.Status),
	}, nil
}

func statusFromIntent(status stripe.PaymentIntentStatus) types.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return types.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return types.PaymentStatusCancelled
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		return types.PaymentStatusRequiresAction
	default:
		return types.PaymentStatusProcessing
	}
}

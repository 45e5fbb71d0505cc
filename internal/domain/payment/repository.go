package payment

import "context"

// Repository provides access to payment storage
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	Update(ctx context.Context, payment *Payment) error
	// GetByGatewayPaymentID looks a payment up by the gateway's charge id;
	// the reconciler's entry point
	GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*Payment, error)
	// GetByIdempotencyKey returns the payment created under the given key
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	// ListByBillingRun returns all payments of a billing run ordered by creation
	ListByBillingRun(ctx context.Context, billingRunID string) ([]*Payment, error)
}

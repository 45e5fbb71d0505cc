package gateway

import (
	"context"

	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// ChargeRequest is a single off-session charge submission
type ChargeRequest struct {
	// Amount in major currency units
	Amount decimal.Decimal
	// Three-letter ISO currency code
	Currency string
	// Gateway-side customer reference
	GatewayCustomerID string
	// Saved payment method to charge
	PaymentMethodID string
	// Key deduplicating retried submissions at the gateway
	IdempotencyKey string
	// Free-form metadata attached to the gateway object
	Metadata map[string]string
}

// ChargeResult is the synchronous outcome of a charge submission. The
// authoritative settlement still arrives asynchronously via webhook.
type ChargeResult struct {
	GatewayPaymentID string
	Status           types.PaymentStatus
}

// Gateway submits charges to an external payment processor.
//
// Implementations classify errors: permanent declines are marked
// ErrInvalidOperation and must not be retried with the same payment method;
// transient transport or processor failures are marked ErrGatewayUnavailable
// and are safe to retry under the same idempotency key.
type Gateway interface {
	SubmitCharge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)
}

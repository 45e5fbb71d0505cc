package payment

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// Payment represents an externally submitted charge. Amount and currency are
// immutable after creation; status is mutated only by the reconciler and the
// executor's synchronous result handling.
type Payment struct {
	// Unique identifier for this payment transaction
	ID string `db:"id" json:"id"`
	// The billing run this payment settles; nil for one-off payments
	BillingRunID *string `db:"billing_run_id" json:"billing_run_id,omitempty"`
	// Unique key used to prevent duplicate gateway submissions
	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key"`
	// The transaction identifier from the external payment gateway (optional)
	GatewayPaymentID *string `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	// The amount field specifies the payment value in the given currency
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// The current state of this payment
	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`
	// When this payment was successfully completed (optional)
	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at,omitempty"`
	// When this payment failed (optional)
	FailedAt *time.Time `db:"failed_at" json:"failed_at,omitempty"`
	// Details about why the payment failed (optional)
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the payment
func (p *Payment) Validate() error {
	if p.Amount.IsZero() || p.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must be greater than 0").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if p.IdempotencyKey == "" {
		return ierr.NewError("invalid idempotency key").
			WithHint("Idempotency key is required").
			Mark(ierr.ErrValidation)
	}
	return p.PaymentStatus.Validate()
}

// TableName returns the table name for the payment
func (p *Payment) TableName() string {
	return "payments"
}

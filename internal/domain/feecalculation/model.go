package feecalculation

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// FeeCalculation is an immutable pricing snapshot consumed by exactly one
// billing run and payment. Superseding a snapshot means creating a new row;
// the most recently created one for a period wins.
type FeeCalculation struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// The billing period this snapshot prices
	BillingPeriodID string `db:"billing_period_id" json:"billing_period_id"`
	// Pre-discount, pre-tax amount
	Subtotal decimal.Decimal `db:"subtotal" json:"subtotal"`
	// Discount applied before tax
	DiscountAmount decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	// Tax computed on the post-discount amount
	TaxAmount decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	// Platform fee computed on the post-discount, pre-tax amount
	PlatformFeeAmount decimal.Decimal `db:"platform_fee_amount" json:"platform_fee_amount"`
	// Final amount owed, floored at zero
	TotalDue decimal.Decimal `db:"total_due" json:"total_due"`
	// The discount that produced DiscountAmount (optional)
	DiscountID *string `db:"discount_id" json:"discount_id,omitempty"`
	// Three-letter ISO currency code copied from the subscription
	Currency string `db:"currency" json:"currency"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the fee calculation snapshot
func (f *FeeCalculation) Validate() error {
	if f.BillingPeriodID == "" {
		return ierr.NewError("invalid billing period id").
			WithHint("Billing period id is required").
			Mark(ierr.ErrValidation)
	}
	if f.Subtotal.IsNegative() {
		return ierr.NewError("invalid subtotal").
			WithHint("Subtotal must not be negative").
			Mark(ierr.ErrInvalidPricingInput)
	}
	if f.TotalDue.IsNegative() {
		return ierr.NewError("invalid total due").
			WithHint("Total due must not be negative").
			Mark(ierr.ErrInvalidPricingInput)
	}
	return nil
}

// TableName returns the table name for the fee calculation
func (f *FeeCalculation) TableName() string {
	return "fee_calculations"
}

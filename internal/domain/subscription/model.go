package subscription

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// Subscription represents a customer's recurring commitment to a priced
// offering. Status is mutated only by the billing period state machine and
// by explicit cancellation requests.
type Subscription struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// The customer this subscription belongs to
	CustomerID string `db:"customer_id" json:"customer_id"`
	// Human readable plan name, informational only
	PlanName string `db:"plan_name" json:"plan_name"`
	// The recurring charge amount per billing period
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code (immutable after creation)
	Currency string `db:"currency" json:"currency"`
	// Recurring interval unit (DAILY, WEEKLY, MONTHLY, ANNUAL)
	BillingInterval types.BillingInterval `db:"billing_interval" json:"billing_interval"`
	// Number of interval units per billing period, e.g. 3 + MONTHLY = quarterly
	BillingIntervalCount int `db:"billing_interval_count" json:"billing_interval_count"`
	// Current lifecycle status
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	// Tax rate percentage snapshotted at creation
	TaxRatePercent decimal.Decimal `db:"tax_rate_percent" json:"tax_rate_percent"`
	// Discount applied to every renewal, bound at checkout (optional)
	DiscountID *string `db:"discount_id" json:"discount_id,omitempty"`
	// End of the trial window; the first period carries no charge (optional)
	TrialEnd *time.Time `db:"trial_end" json:"trial_end,omitempty"`
	// Requested cancellation time; honored at the next transition (optional)
	CancelAt *time.Time `db:"cancel_at" json:"cancel_at,omitempty"`
	// When the subscription was actually cancelled (optional)
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	// Pointers to the currently in-progress billing period window
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the subscription
func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("invalid customer id").
			WithHint("Customer id is required").
			Mark(ierr.ErrValidation)
	}
	if s.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if s.Currency == "" {
		return ierr.NewError("invalid currency").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	if err := s.BillingInterval.Validate(); err != nil {
		return err
	}
	if s.BillingIntervalCount <= 0 {
		return ierr.NewError("invalid billing interval count").
			WithHint("Billing interval count must be positive").
			Mark(ierr.ErrValidation)
	}
	return s.SubscriptionStatus.Validate()
}

// TableName returns the table name for the subscription
func (s *Subscription) TableName() string {
	return "subscriptions"
}

package billingrun

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

// BillingRun is one charge attempt cycle scoped to a billing period. The
// attempt count and scheduled_for drive the retry schedule; at most one run
// per period is non-terminal at a time.
type BillingRun struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// Owning billing period
	BillingPeriodID string `db:"billing_period_id" json:"billing_period_id"`
	// Denormalized subscription reference for due-queries and logging
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	// Lifecycle status of the run
	RunStatus types.BillingRunStatus `db:"run_status" json:"run_status"`
	// When the run becomes due for (re)execution
	ScheduledFor time.Time `db:"scheduled_for" json:"scheduled_for"`
	// Number of charge attempts made so far
	AttemptCount int `db:"attempt_count" json:"attempt_count"`
	// When the last attempt started (optional)
	LastAttemptAt *time.Time `db:"last_attempt_at" json:"last_attempt_at,omitempty"`
	// The immutable pricing snapshot backing the charge (optional until priced)
	FeeCalculationID *string `db:"fee_calculation_id" json:"fee_calculation_id,omitempty"`
	// Why the run failed or was abandoned (optional)
	FailureReason *string `db:"failure_reason" json:"failure_reason,omitempty"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the billing run
func (r *BillingRun) Validate() error {
	if r.BillingPeriodID == "" {
		return ierr.NewError("invalid billing period id").
			WithHint("Billing period id is required").
			Mark(ierr.ErrValidation)
	}
	if r.SubscriptionID == "" {
		return ierr.NewError("invalid subscription id").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if r.AttemptCount < 0 {
		return ierr.NewError("invalid attempt count").
			WithHint("Attempt count must not be negative").
			Mark(ierr.ErrValidation)
	}
	return r.RunStatus.Validate()
}

// TableName returns the table name for the billing run
func (r *BillingRun) TableName() string {
	return "billing_runs"
}

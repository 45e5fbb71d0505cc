package billingperiod

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

// BillingPeriod is a bounded half-open window [PeriodStart, PeriodEnd) of a
// subscription during which exactly one charge attempt cycle is owed.
// Periods of the same subscription are contiguous and non-overlapping, and
// at most one is in_progress at any time.
type BillingPeriod struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// Owning subscription
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	// Window boundaries; PeriodEnd is exclusive
	PeriodStart time.Time `db:"period_start" json:"period_start"`
	PeriodEnd   time.Time `db:"period_end" json:"period_end"`
	// Lifecycle status of the window
	PeriodStatus types.BillingPeriodStatus `db:"period_status" json:"period_status"`
	// Trial periods carry no charge; their run is never created
	Trial bool `db:"trial" json:"trial"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the billing period
func (p *BillingPeriod) Validate() error {
	if p.SubscriptionID == "" {
		return ierr.NewError("invalid subscription id").
			WithHint("Subscription id is required").
			Mark(ierr.ErrValidation)
	}
	if !p.PeriodEnd.After(p.PeriodStart) {
		return ierr.NewError("invalid period window").
			WithHint("Period end must be after period start").
			WithReportableDetails(map[string]any{
				"period_start": p.PeriodStart,
				"period_end":   p.PeriodEnd,
			}).
			Mark(ierr.ErrValidation)
	}
	return p.PeriodStatus.Validate()
}

// TableName returns the table name for the billing period
func (p *BillingPeriod) TableName() string {
	return "billing_periods"
}

package types

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/samber/lo"
)

// BillingPeriodStatus is the status of one bounded billing window
// of a subscription. A subscription has at most one in_progress
// period at any time.
type BillingPeriodStatus string

const (
	BillingPeriodStatusInProgress BillingPeriodStatus = "in_progress"
	BillingPeriodStatusCompleted  BillingPeriodStatus = "completed"
	BillingPeriodStatusCancelled  BillingPeriodStatus = "cancelled"
)

func (s BillingPeriodStatus) String() string {
	return string(s)
}

// IsTerminal returns true for completed and cancelled periods
func (s BillingPeriodStatus) IsTerminal() bool {
	return s == BillingPeriodStatusCompleted || s == BillingPeriodStatusCancelled
}

func (s BillingPeriodStatus) Validate() error {
	allowed := []BillingPeriodStatus{
		BillingPeriodStatusInProgress,
		BillingPeriodStatusCompleted,
		BillingPeriodStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid billing period status").
			WithHint("Invalid billing period status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

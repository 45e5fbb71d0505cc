package types

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/samber/lo"
)

// BillingRunStatus is the status of a single charge attempt cycle
// scoped to a billing period. At most one run per period is in a
// non-terminal state at a time.
type BillingRunStatus string

const (
	BillingRunStatusScheduled  BillingRunStatus = "scheduled"
	BillingRunStatusInProgress BillingRunStatus = "in_progress"
	BillingRunStatusSucceeded  BillingRunStatus = "succeeded"
	BillingRunStatusFailed     BillingRunStatus = "failed"
	BillingRunStatusAbandoned  BillingRunStatus = "abandoned"
)

func (s BillingRunStatus) String() string {
	return string(s)
}

// IsTerminal returns true once a run can never be executed again
func (s BillingRunStatus) IsTerminal() bool {
	return s == BillingRunStatusSucceeded ||
		s == BillingRunStatusFailed ||
		s == BillingRunStatusAbandoned
}

func (s BillingRunStatus) Validate() error {
	allowed := []BillingRunStatus{
		BillingRunStatusScheduled,
		BillingRunStatusInProgress,
		BillingRunStatusSucceeded,
		BillingRunStatusFailed,
		BillingRunStatusAbandoned,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid billing run status").
			WithHint("Invalid billing run status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ExhaustionAction decides what happens to the subscription once a
// billing run exhausts its retry budget. Organization configurable.
type ExhaustionAction string

const (
	ExhaustionActionPastDue ExhaustionAction = "past_due"
	ExhaustionActionCancel  ExhaustionAction = "cancel"
)

func (a ExhaustionAction) Validate() error {
	allowed := []ExhaustionAction{
		ExhaustionActionPastDue,
		ExhaustionActionCancel,
	}
	if !lo.Contains(allowed, a) {
		return ierr.NewError("invalid exhaustion action").
			WithHint("Exhaustion action must be past_due or cancel").
			WithReportableDetails(map[string]any{
				"action": a,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

package types

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a subscription
// For now taking inspiration from Stripe's subscription statuses
// https://stripe.com/docs/api/subscriptions/object#subscription_object-status
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing  SubscriptionStatus = "trialing"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusEnded     SubscriptionStatus = "ended"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsTerminal returns true when no further billing activity is allowed
// for the subscription
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusEnded
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
		SubscriptionStatusEnded,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingInterval is the unit of a subscription's recurring interval
type BillingInterval string

const (
	BILLING_INTERVAL_DAILY   BillingInterval = "DAILY"
	BILLING_INTERVAL_WEEKLY  BillingInterval = "WEEKLY"
	BILLING_INTERVAL_MONTHLY BillingInterval = "MONTHLY"
	BILLING_INTERVAL_ANNUAL  BillingInterval = "ANNUAL"
)

func (b BillingInterval) String() string {
	return string(b)
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BILLING_INTERVAL_DAILY,
		BILLING_INTERVAL_WEEKLY,
		BILLING_INTERVAL_MONTHLY,
		BILLING_INTERVAL_ANNUAL,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Invalid billing interval").
			WithReportableDetails(map[string]any{
				"interval": b,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionFilter represents the filter for listing subscriptions
type SubscriptionFilter struct {
	*QueryFilter

	SubscriptionIDs    []string             `form:"subscription_ids"`
	CustomerID         *string              `form:"customer_id"`
	SubscriptionStatus []SubscriptionStatus `form:"subscription_status"`
	ActiveBefore       *time.Time           `form:"active_before"`
}

func (f *SubscriptionFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.QueryFilter.Validate()
}

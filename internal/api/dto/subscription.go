package dto

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// CreateSubscriptionRequest starts a new recurring commitment for a customer
type CreateSubscriptionRequest struct {
	CustomerID           string                `json:"customer_id" binding:"required"`
	PlanName             string                `json:"plan_name" binding:"required"`
	Amount               decimal.Decimal       `json:"amount" binding:"required"`
	Currency             string                `json:"currency" binding:"required"`
	BillingInterval      types.BillingInterval `json:"billing_interval" binding:"required"`
	BillingIntervalCount int                   `json:"billing_interval_count"`
	TaxRatePercent       decimal.Decimal       `json:"tax_rate_percent"`
	DiscountCode         *string               `json:"discount_code,omitempty"`
	TrialEnd             *time.Time            `json:"trial_end,omitempty"`
}

func (r *CreateSubscriptionRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if r.TaxRatePercent.IsNegative() {
		return ierr.NewError("invalid tax rate").
			WithHint("Tax rate must not be negative").
			Mark(ierr.ErrValidation)
	}
	if r.TrialEnd != nil && !r.TrialEnd.After(time.Now().UTC()) {
		return ierr.NewError("invalid trial end").
			WithHint("Trial end must be in the future").
			Mark(ierr.ErrValidation)
	}
	return r.BillingInterval.Validate()
}

// ToSubscription converts the request into a domain subscription
func (r *CreateSubscriptionRequest) ToSubscription(ctx context.Context) *subscription.Subscription {
	count := r.BillingIntervalCount
	if count == 0 {
		count = 1
	}

	status := types.SubscriptionStatusActive
	if r.TrialEnd != nil {
		status = types.SubscriptionStatusTrialing
	}

	return &subscription.Subscription{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:           r.CustomerID,
		PlanName:             r.PlanName,
		Amount:               r.Amount,
		Currency:             r.Currency,
		BillingInterval:      r.BillingInterval,
		BillingIntervalCount: count,
		SubscriptionStatus:   status,
		TaxRatePercent:       r.TaxRatePercent,
		TrialEnd:             r.TrialEnd,
		EnvironmentID:        types.GetEnvironmentID(ctx),
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
}

// CancelSubscriptionRequest cancels a subscription, either immediately or at
// the end of the current billing period
type CancelSubscriptionRequest struct {
	AtPeriodEnd bool `json:"at_period_end"`
}

// SubscriptionResponse is the API shape of a subscription
type SubscriptionResponse struct {
	*subscription.Subscription
}

// ListSubscriptionsResponse is a page of subscriptions
type ListSubscriptionsResponse struct {
	Items []*SubscriptionResponse `json:"items"`
	Total int                     `json:"total"`
}

package dto

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/checkout"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

const defaultCheckoutExpiry = 30 * time.Minute

// CreateCheckoutSessionRequest opens a checkout session for a customer
type CreateCheckoutSessionRequest struct {
	CustomerID           string                `json:"customer_id" binding:"required"`
	PlanName             string                `json:"plan_name" binding:"required"`
	Amount               decimal.Decimal       `json:"amount" binding:"required"`
	Currency             string                `json:"currency" binding:"required"`
	BillingInterval      types.BillingInterval `json:"billing_interval" binding:"required"`
	BillingIntervalCount int                   `json:"billing_interval_count"`
	ExpiresIn            *time.Duration        `json:"expires_in,omitempty"`
}

func (r *CreateCheckoutSessionRequest) Validate() error {
	if r.Amount.IsNegative() {
		return ierr.NewError("invalid amount").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	return r.BillingInterval.Validate()
}

// ToSession converts the request into a domain checkout session
func (r *CreateCheckoutSessionRequest) ToSession(ctx context.Context) *checkout.Session {
	count := r.BillingIntervalCount
	if count == 0 {
		count = 1
	}
	expiry := defaultCheckoutExpiry
	if r.ExpiresIn != nil {
		expiry = *r.ExpiresIn
	}

	return &checkout.Session{
		ID:                   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CHECKOUT),
		CustomerID:           r.CustomerID,
		PlanName:             r.PlanName,
		Amount:               r.Amount,
		Currency:             r.Currency,
		BillingInterval:      r.BillingInterval,
		BillingIntervalCount: count,
		SessionStatus:        checkout.SessionStatusOpen,
		ExpiresAt:            time.Now().UTC().Add(expiry),
		EnvironmentID:        types.GetEnvironmentID(ctx),
		BaseModel:            types.GetDefaultBaseModel(ctx),
	}
}

// BindDiscountRequest presents a discount code against a checkout session
type BindDiscountRequest struct {
	Code string `json:"code" binding:"required"`
}

// CompleteCheckoutRequest completes a session into a subscription
type CompleteCheckoutRequest struct {
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TrialEnd       *time.Time      `json:"trial_end,omitempty"`
}

// CheckoutSessionResponse is the API shape of a checkout session
type CheckoutSessionResponse struct {
	*checkout.Session
	// Set when a discount bind attempt did not apply
	DiscountApplied bool `json:"discount_applied"`
}

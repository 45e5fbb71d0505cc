package checkout

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// SessionStatus is the lifecycle status of a checkout session
type SessionStatus string

const (
	SessionStatusOpen     SessionStatus = "open"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusExpired  SessionStatus = "expired"
)

// Validate validates the session status
func (s SessionStatus) Validate() error {
	switch s {
	case SessionStatusOpen, SessionStatusComplete, SessionStatusExpired:
		return nil
	default:
		return ierr.NewError("invalid session status").
			WithHintf("Unknown session status: %s", s).
			Mark(ierr.ErrValidation)
	}
}

// Session is a pre-subscription checkout context. A discount bound to the
// session is copied onto the subscription when the session completes.
type Session struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// The customer checking out
	CustomerID string `db:"customer_id" json:"customer_id"`
	// Name of the plan being purchased
	PlanName string `db:"plan_name" json:"plan_name"`
	// Recurring amount of the plan
	Amount decimal.Decimal `db:"amount" json:"amount"`
	// Three-letter ISO currency code
	Currency string `db:"currency" json:"currency"`
	// Billing cadence of the plan
	BillingInterval types.BillingInterval `db:"billing_interval" json:"billing_interval"`
	// Multiplier for the interval, e.g. every 3 months
	BillingIntervalCount int `db:"billing_interval_count" json:"billing_interval_count"`
	// Lifecycle status of the session
	SessionStatus SessionStatus `db:"session_status" json:"session_status"`
	// Discount bound to this session (optional)
	DiscountID *string `db:"discount_id" json:"discount_id,omitempty"`
	// Subscription created when the session completed (optional)
	SubscriptionID *string `db:"subscription_id" json:"subscription_id,omitempty"`
	// When the session stops being completable
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the checkout session
func (s *Session) Validate() error {
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
	if err := s.BillingInterval.Validate(); err != nil {
		return err
	}
	return s.SessionStatus.Validate()
}

// TableName returns the table name for the checkout session
func (s *Session) TableName() string {
	return "checkout_sessions"
}

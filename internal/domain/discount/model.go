package discount

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// Discount is a reduction applied to a subscription's subtotal before tax.
// Either AmountOff or PercentageOff is set, never both.
type Discount struct {
	// Unique identifier
	ID string `db:"id" json:"id"`
	// Human-facing redemption code, unique per tenant
	Code string `db:"code" json:"code"`
	// Whether the discount can currently be bound
	Active bool `db:"active" json:"active"`
	// Fixed amount reduction (optional)
	AmountOff *decimal.Decimal `db:"amount_off" json:"amount_off,omitempty"`
	// Percentage reduction in [0,100] (optional)
	PercentageOff *decimal.Decimal `db:"percentage_off" json:"percentage_off,omitempty"`
	// When the discount stops being bindable (optional)
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the discount
func (d *Discount) Validate() error {
	if d.Code == "" {
		return ierr.NewError("invalid code").
			WithHint("Discount code is required").
			Mark(ierr.ErrValidation)
	}
	if d.AmountOff == nil && d.PercentageOff == nil {
		return ierr.NewError("invalid discount").
			WithHint("One of amount_off or percentage_off is required").
			Mark(ierr.ErrValidation)
	}
	if d.AmountOff != nil && d.PercentageOff != nil {
		return ierr.NewError("invalid discount").
			WithHint("Only one of amount_off or percentage_off may be set").
			Mark(ierr.ErrValidation)
	}
	if d.AmountOff != nil && d.AmountOff.IsNegative() {
		return ierr.NewError("invalid amount_off").
			WithHint("Amount off must not be negative").
			Mark(ierr.ErrValidation)
	}
	if d.PercentageOff != nil {
		if d.PercentageOff.IsNegative() || d.PercentageOff.GreaterThan(decimal.NewFromInt(100)) {
			return ierr.NewError("invalid percentage_off").
				WithHint("Percentage off must be between 0 and 100").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// IsUsable reports whether the discount can be applied at the given time
func (d *Discount) IsUsable(now time.Time) bool {
	if !d.Active || d.Status != types.StatusPublished {
		return false
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return false
	}
	return true
}

// AmountFor returns the reduction this discount yields on the given subtotal.
// The result is clamped so it never exceeds the subtotal.
func (d *Discount) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	var off decimal.Decimal
	switch {
	case d.AmountOff != nil:
		off = *d.AmountOff
	case d.PercentageOff != nil:
		off = subtotal.Mul(*d.PercentageOff).Div(decimal.NewFromInt(100))
	}
	if off.GreaterThan(subtotal) {
		return subtotal
	}
	if off.IsNegative() {
		return decimal.Zero
	}
	return off
}

// TableName returns the table name for the discount
func (d *Discount) TableName() string {
	return "discounts"
}

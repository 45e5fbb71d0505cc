package customer

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

// Customer represents a billable customer of a tenant
type Customer struct {
	// Unique identifier for the customer
	ID string `db:"id" json:"id"`
	// External identifier in the caller's system, unique per tenant
	ExternalID string `db:"external_id" json:"external_id"`
	// Name of the customer
	Name string `db:"name" json:"name"`
	// Email of the customer
	Email string `db:"email" json:"email"`
	// Gateway payment method used for off-session charges (optional)
	DefaultPaymentMethodID *string `db:"default_payment_method_id" json:"default_payment_method_id,omitempty"`
	// Gateway-side customer reference (optional)
	GatewayCustomerID *string `db:"gateway_customer_id" json:"gateway_customer_id,omitempty"`
	// The environment_id partitions live and sandbox data
	EnvironmentID string `db:"environment_id" json:"environment_id"`

	types.BaseModel
}

// Validate validates the customer
func (c *Customer) Validate() error {
	if c.ExternalID == "" {
		return ierr.NewError("invalid external id").
			WithHint("External id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TableName returns the table name for the customer
func (c *Customer) TableName() string {
	return "customers"
}

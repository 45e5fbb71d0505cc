package dto

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/customer"
	"github.com/flexprice/rebill/internal/types"
)

// CreateCustomerRequest registers a billable customer
type CreateCustomerRequest struct {
	ExternalID             string  `json:"external_id" binding:"required"`
	Name                   string  `json:"name"`
	Email                  string  `json:"email"`
	GatewayCustomerID      *string `json:"gateway_customer_id,omitempty"`
	DefaultPaymentMethodID *string `json:"default_payment_method_id,omitempty"`
}

// ToCustomer converts the request into a domain customer
func (r *CreateCustomerRequest) ToCustomer(ctx context.Context) *customer.Customer {
	return &customer.Customer{
		ID:                     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID:             r.ExternalID,
		Name:                   r.Name,
		Email:                  r.Email,
		GatewayCustomerID:      r.GatewayCustomerID,
		DefaultPaymentMethodID: r.DefaultPaymentMethodID,
		EnvironmentID:          types.GetEnvironmentID(ctx),
		BaseModel:              types.GetDefaultBaseModel(ctx),
	}
}

// UpdateCustomerRequest updates mutable customer attributes
type UpdateCustomerRequest struct {
	Name                   *string `json:"name,omitempty"`
	Email                  *string `json:"email,omitempty"`
	GatewayCustomerID      *string `json:"gateway_customer_id,omitempty"`
	DefaultPaymentMethodID *string `json:"default_payment_method_id,omitempty"`
}

// CustomerResponse is the API shape of a customer
type CustomerResponse struct {
	*customer.Customer
}

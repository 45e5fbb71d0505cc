package customer

import "context"

// Repository provides access to customer storage
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	Update(ctx context.Context, customer *Customer) error
	// GetByExternalID resolves a customer by the caller-supplied identifier
	GetByExternalID(ctx context.Context, externalID string) (*Customer, error)
}

package discount

import "context"

// Repository provides access to discount storage
type Repository interface {
	Create(ctx context.Context, discount *Discount) error
	Get(ctx context.Context, id string) (*Discount, error)
	Update(ctx context.Context, discount *Discount) error
	// GetByCode resolves a redemption code within the tenant in context
	GetByCode(ctx context.Context, code string) (*Discount, error)
}

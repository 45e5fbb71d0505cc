package feecalculation

import "context"

// Repository provides access to fee calculation storage. Snapshots are
// append-only; there is no Update.
type Repository interface {
	Create(ctx context.Context, calc *FeeCalculation) error
	Get(ctx context.Context, id string) (*FeeCalculation, error)
	// GetLatestByPeriod returns the most recently created snapshot for a
	// billing period, or a not found error
	GetLatestByPeriod(ctx context.Context, billingPeriodID string) (*FeeCalculation, error)
	// ListByPeriod returns all snapshots of a period, newest first
	ListByPeriod(ctx context.Context, billingPeriodID string) ([]*FeeCalculation, error)
}

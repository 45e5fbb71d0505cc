package billingperiod

import (
	"context"
	"time"
)

// Repository provides access to billing period storage
type Repository interface {
	Create(ctx context.Context, period *BillingPeriod) error
	Get(ctx context.Context, id string) (*BillingPeriod, error)
	Update(ctx context.Context, period *BillingPeriod) error
	// GetInProgressBySubscription returns the single in_progress period of a
	// subscription, or a not found error
	GetInProgressBySubscription(ctx context.Context, subscriptionID string) (*BillingPeriod, error)
	// ListBySubscription returns all periods of a subscription ordered by start
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*BillingPeriod, error)
	// ListDueAllTenants returns in_progress periods whose end has elapsed,
	// across all tenants, for the scheduler sweep. Results are paginated.
	ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*BillingPeriod, error)
}

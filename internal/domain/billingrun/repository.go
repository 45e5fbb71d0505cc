package billingrun

import (
	"context"
	"time"
)

// Repository provides access to billing run storage
type Repository interface {
	Create(ctx context.Context, run *BillingRun) error
	Get(ctx context.Context, id string) (*BillingRun, error)
	Update(ctx context.Context, run *BillingRun) error
	// GetActiveByPeriod returns the single non-terminal (scheduled or
	// in_progress) run of a period, or a not found error
	GetActiveByPeriod(ctx context.Context, billingPeriodID string) (*BillingRun, error)
	// ListByPeriod returns all runs of a period ordered by creation
	ListByPeriod(ctx context.Context, billingPeriodID string) ([]*BillingRun, error)
	// ListDueAllTenants returns scheduled runs whose scheduled_for has
	// elapsed, across all tenants, for the scheduler sweep. Paginated.
	ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*BillingRun, error)
}

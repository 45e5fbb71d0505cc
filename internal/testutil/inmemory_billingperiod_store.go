package testutil

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ billingperiod.Repository = (*InMemoryBillingPeriodStore)(nil)

// InMemoryBillingPeriodStore implements billingperiod.Repository
type InMemoryBillingPeriodStore struct {
	*InMemoryStore[*billingperiod.BillingPeriod]
}

// NewInMemoryBillingPeriodStore creates a new in-memory billing period repository
func NewInMemoryBillingPeriodStore() *InMemoryBillingPeriodStore {
	return &InMemoryBillingPeriodStore{
		InMemoryStore: NewInMemoryStore[*billingperiod.BillingPeriod](),
	}
}

func (s *InMemoryBillingPeriodStore) Create(ctx context.Context, period *billingperiod.BillingPeriod) error {
	if period == nil {
		return ierr.NewError("billing period cannot be nil").
			WithHint("Billing period cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if period.EnvironmentID == "" {
		period.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, period.ID, period)
}

func (s *InMemoryBillingPeriodStore) Get(ctx context.Context, id string) (*billingperiod.BillingPeriod, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryBillingPeriodStore) Update(ctx context.Context, period *billingperiod.BillingPeriod) error {
	if period == nil {
		return ierr.NewError("billing period cannot be nil").
			WithHint("Billing period cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, period.ID, period)
}

func (s *InMemoryBillingPeriodStore) GetInProgressBySubscription(ctx context.Context, subscriptionID string) (*billingperiod.BillingPeriod, error) {
	filterFn := func(ctx context.Context, p *billingperiod.BillingPeriod, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, p.TenantID, p.EnvironmentID) &&
			p.SubscriptionID == subscriptionID &&
			p.PeriodStatus == types.BillingPeriodStatusInProgress
	}
	sortFn := func(i, j *billingperiod.BillingPeriod) bool {
		return i.PeriodStart.After(j.PeriodStart)
	}

	periods, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	if len(periods) == 0 {
		return nil, ierr.NewError("no in-progress billing period").
			WithHint("The subscription has no in-progress billing period").
			Mark(ierr.ErrNotFound)
	}
	return periods[0], nil
}

func (s *InMemoryBillingPeriodStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingperiod.BillingPeriod, error) {
	filterFn := func(ctx context.Context, p *billingperiod.BillingPeriod, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, p.TenantID, p.EnvironmentID) &&
			p.SubscriptionID == subscriptionID
	}
	sortFn := func(i, j *billingperiod.BillingPeriod) bool {
		return i.PeriodStart.Before(j.PeriodStart)
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
}

func (s *InMemoryBillingPeriodStore) ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*billingperiod.BillingPeriod, error) {
	// Sweep queries cross tenant boundaries on purpose
	filterFn := func(ctx context.Context, p *billingperiod.BillingPeriod, _ interface{}) bool {
		return p.PeriodStatus == types.BillingPeriodStatusInProgress &&
			!p.PeriodEnd.After(now)
	}
	sortFn := func(i, j *billingperiod.BillingPeriod) bool {
		return i.PeriodEnd.Before(j.PeriodEnd)
	}

	periods, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	return paginate(periods, limit, offset), nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

package testutil

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingrun"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ billingrun.Repository = (*InMemoryBillingRunStore)(nil)

// InMemoryBillingRunStore implements billingrun.Repository
type InMemoryBillingRunStore struct {
	*InMemoryStore[*billingrun.BillingRun]
}

// NewInMemoryBillingRunStore creates a new in-memory billing run repository
func NewInMemoryBillingRunStore() *InMemoryBillingRunStore {
	return &InMemoryBillingRunStore{
		InMemoryStore: NewInMemoryStore[*billingrun.BillingRun](),
	}
}

func (s *InMemoryBillingRunStore) Create(ctx context.Context, run *billingrun.BillingRun) error {
	if run == nil {
		return ierr.NewError("billing run cannot be nil").
			WithHint("Billing run cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if run.EnvironmentID == "" {
		run.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, run.ID, run)
}

func (s *InMemoryBillingRunStore) Get(ctx context.Context, id string) (*billingrun.BillingRun, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryBillingRunStore) Update(ctx context.Context, run *billingrun.BillingRun) error {
	if run == nil {
		return ierr.NewError("billing run cannot be nil").
			WithHint("Billing run cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, run.ID, run)
}

func (s *InMemoryBillingRunStore) GetActiveByPeriod(ctx context.Context, billingPeriodID string) (*billingrun.BillingRun, error) {
	filterFn := func(ctx context.Context, r *billingrun.BillingRun, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, r.TenantID, r.EnvironmentID) &&
			r.BillingPeriodID == billingPeriodID &&
			!r.RunStatus.IsTerminal()
	}

	runs, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ierr.NewError("no active billing run").
			WithHint("The billing period has no active billing run").
			Mark(ierr.ErrNotFound)
	}
	return runs[0], nil
}

func (s *InMemoryBillingRunStore) ListByPeriod(ctx context.Context, billingPeriodID string) ([]*billingrun.BillingRun, error) {
	filterFn := func(ctx context.Context, r *billingrun.BillingRun, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, r.TenantID, r.EnvironmentID) &&
			r.BillingPeriodID == billingPeriodID
	}
	sortFn := func(i, j *billingrun.BillingRun) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
}

func (s *InMemoryBillingRunStore) ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*billingrun.BillingRun, error) {
	// Sweep queries cross tenant boundaries on purpose
	filterFn := func(ctx context.Context, r *billingrun.BillingRun, _ interface{}) bool {
		return r.RunStatus == types.BillingRunStatusScheduled &&
			!r.ScheduledFor.After(now)
	}
	sortFn := func(i, j *billingrun.BillingRun) bool {
		return i.ScheduledFor.Before(j.ScheduledFor)
	}

	runs, err := s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
	if err != nil {
		return nil, err
	}
	return paginate(runs, limit, offset), nil
}

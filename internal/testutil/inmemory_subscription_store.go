package testutil

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
)

var _ subscription.Repository = (*InMemorySubscriptionStore)(nil)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription repository
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if sub.EnvironmentID == "" {
		sub.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			WithHint("Subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, sub.ID, sub)
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	filterFn := func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		if !CheckTenantEnvFilter(ctx, sub.TenantID, sub.EnvironmentID) {
			return false
		}
		if sub.Status == types.StatusDeleted {
			return false
		}
		if filter == nil {
			return true
		}
		if filter.CustomerID != nil && sub.CustomerID != *filter.CustomerID {
			return false
		}
		if len(filter.SubscriptionIDs) > 0 && !lo.Contains(filter.SubscriptionIDs, sub.ID) {
			return false
		}
		if len(filter.SubscriptionStatus) > 0 && !lo.Contains(filter.SubscriptionStatus, sub.SubscriptionStatus) {
			return false
		}
		if filter.ActiveBefore != nil && !sub.CreatedAt.Before(*filter.ActiveBefore) {
			return false
		}
		return true
	}

	sortFn := func(i, j *subscription.Subscription) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	}

	subs, err := s.InMemoryStore.List(ctx, filter, filterFn, sortFn)
	if err != nil {
		return nil, err
	}

	if filter != nil && filter.QueryFilter != nil && !filter.IsUnlimited() {
		start := filter.GetOffset()
		if start >= len(subs) {
			return []*subscription.Subscription{}, nil
		}
		end := start + filter.GetLimit()
		if end > len(subs) {
			end = len(subs)
		}
		subs = subs[start:end]
	}

	return subs, nil
}

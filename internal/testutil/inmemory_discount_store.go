package testutil

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/discount"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ discount.Repository = (*InMemoryDiscountStore)(nil)

// InMemoryDiscountStore implements discount.Repository
type InMemoryDiscountStore struct {
	*InMemoryStore[*discount.Discount]
}

// NewInMemoryDiscountStore creates a new in-memory discount repository
func NewInMemoryDiscountStore() *InMemoryDiscountStore {
	return &InMemoryDiscountStore{
		InMemoryStore: NewInMemoryStore[*discount.Discount](),
	}
}

func (s *InMemoryDiscountStore) Create(ctx context.Context, d *discount.Discount) error {
	if d == nil {
		return ierr.NewError("discount cannot be nil").
			WithHint("Discount cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if d.EnvironmentID == "" {
		d.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, d.ID, d)
}

func (s *InMemoryDiscountStore) Get(ctx context.Context, id string) (*discount.Discount, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryDiscountStore) Update(ctx context.Context, d *discount.Discount) error {
	if d == nil {
		return ierr.NewError("discount cannot be nil").
			WithHint("Discount cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, d.ID, d)
}

// GetByCode resolves a code within the tenant in context; codes of other
// tenants are indistinguishable from absent ones
func (s *InMemoryDiscountStore) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	filterFn := func(ctx context.Context, d *discount.Discount, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, d.TenantID, d.EnvironmentID) &&
			d.Code == code &&
			d.Status != types.StatusDeleted
	}

	discounts, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(discounts) == 0 {
		return nil, ierr.NewError("discount not found").
			WithHint("No discount exists with this code").
			WithReportableDetails(map[string]any{
				"code": code,
			}).
			Mark(ierr.ErrNotFound)
	}
	return discounts[0], nil
}

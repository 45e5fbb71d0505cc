package testutil

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/customer"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ customer.Repository = (*InMemoryCustomerStore)(nil)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]
}

// NewInMemoryCustomerStore creates a new in-memory customer repository
func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.Customer](),
	}
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	if c == nil {
		return ierr.NewError("customer cannot be nil").
			WithHint("Customer cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if c.EnvironmentID == "" {
		c.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, c.ID, c)
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id string) (*customer.Customer, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryCustomerStore) Update(ctx context.Context, c *customer.Customer) error {
	if c == nil {
		return ierr.NewError("customer cannot be nil").
			WithHint("Customer cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, c.ID, c)
}

func (s *InMemoryCustomerStore) GetByExternalID(ctx context.Context, externalID string) (*customer.Customer, error) {
	filterFn := func(ctx context.Context, c *customer.Customer, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, c.TenantID, c.EnvironmentID) &&
			c.ExternalID == externalID &&
			c.Status != types.StatusDeleted
	}

	customers, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, ierr.NewError("customer not found").
			WithHint("No customer exists with this external id").
			WithReportableDetails(map[string]any{
				"external_id": externalID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return customers[0], nil
}

package testutil

import (
	"context"
	"sync"

	"github.com/flexprice/rebill/internal/domain/feecalculation"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ feecalculation.Repository = (*InMemoryFeeCalculationStore)(nil)

// InMemoryFeeCalculationStore implements feecalculation.Repository. Snapshots
// are append-only, so insertion order doubles as recency order.
type InMemoryFeeCalculationStore struct {
	*InMemoryStore[*feecalculation.FeeCalculation]
	mu             sync.Mutex
	createdInOrder []*feecalculation.FeeCalculation
}

// NewInMemoryFeeCalculationStore creates a new in-memory fee calculation repository
func NewInMemoryFeeCalculationStore() *InMemoryFeeCalculationStore {
	return &InMemoryFeeCalculationStore{
		InMemoryStore: NewInMemoryStore[*feecalculation.FeeCalculation](),
	}
}

// Clear resets all stored data
func (s *InMemoryFeeCalculationStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.InMemoryStore.Clear()
	s.createdInOrder = nil
}

func (s *InMemoryFeeCalculationStore) Create(ctx context.Context, calc *feecalculation.FeeCalculation) error {
	if calc == nil {
		return ierr.NewError("fee calculation cannot be nil").
			WithHint("Fee calculation cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if calc.EnvironmentID == "" {
		calc.EnvironmentID = types.GetEnvironmentID(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.InMemoryStore.Create(ctx, calc.ID, calc); err != nil {
		return err
	}
	s.createdInOrder = append(s.createdInOrder, calc)
	return nil
}

func (s *InMemoryFeeCalculationStore) Get(ctx context.Context, id string) (*feecalculation.FeeCalculation, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryFeeCalculationStore) GetLatestByPeriod(ctx context.Context, billingPeriodID string) (*feecalculation.FeeCalculation, error) {
	calcs, err := s.ListByPeriod(ctx, billingPeriodID)
	if err != nil {
		return nil, err
	}
	if len(calcs) == 0 {
		return nil, ierr.NewError("no fee calculation for period").
			WithHint("The billing period has no fee calculation").
			Mark(ierr.ErrNotFound)
	}
	return calcs[0], nil
}

// ListByPeriod returns snapshots newest first
func (s *InMemoryFeeCalculationStore) ListByPeriod(ctx context.Context, billingPeriodID string) ([]*feecalculation.FeeCalculation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*feecalculation.FeeCalculation
	for i := len(s.createdInOrder) - 1; i >= 0; i-- {
		calc := s.createdInOrder[i]
		if calc.BillingPeriodID == billingPeriodID &&
			CheckTenantEnvFilter(ctx, calc.TenantID, calc.EnvironmentID) {
			result = append(result, calc)
		}
	}
	return result, nil
}

package testutil

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/payment"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ payment.Repository = (*InMemoryPaymentStore)(nil)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
}

// NewInMemoryPaymentStore creates a new in-memory payment repository
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
	}
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if p.EnvironmentID == "" {
		p.EnvironmentID = types.GetEnvironmentID(ctx)
	}

	// The unique constraint on idempotency_key is part of the contract the
	// executor relies on
	existing, err := s.findOne(ctx, false, func(row *payment.Payment) bool {
		return row.IdempotencyKey == p.IdempotencyKey
	})
	if err == nil && existing != nil {
		return ierr.NewError("payment already exists for idempotency key").
			WithHint("A payment with this idempotency key already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	return s.InMemoryStore.Create(ctx, p.ID, p)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	if p == nil {
		return ierr.NewError("payment cannot be nil").
			WithHint("Payment cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, p.ID, p)
}

// GetByGatewayPaymentID is tenant-unscoped; the webhook ingress has no
// tenant context until the payment row restores it
func (s *InMemoryPaymentStore) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	return s.findOne(ctx, true, func(row *payment.Payment) bool {
		return row.GatewayPaymentID != nil && *row.GatewayPaymentID == gatewayPaymentID
	})
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	return s.findOne(ctx, false, func(row *payment.Payment) bool {
		return row.IdempotencyKey == key
	})
}

func (s *InMemoryPaymentStore) ListByBillingRun(ctx context.Context, billingRunID string) ([]*payment.Payment, error) {
	filterFn := func(ctx context.Context, row *payment.Payment, _ interface{}) bool {
		return CheckTenantEnvFilter(ctx, row.TenantID, row.EnvironmentID) &&
			row.BillingRunID != nil && *row.BillingRunID == billingRunID
	}
	sortFn := func(i, j *payment.Payment) bool {
		return i.CreatedAt.Before(j.CreatedAt)
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
}

func (s *InMemoryPaymentStore) findOne(ctx context.Context, unscoped bool, match func(*payment.Payment) bool) (*payment.Payment, error) {
	filterFn := func(ctx context.Context, row *payment.Payment, _ interface{}) bool {
		if !unscoped && !CheckTenantEnvFilter(ctx, row.TenantID, row.EnvironmentID) {
			return false
		}
		return match(row)
	}

	rows, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("The requested payment does not exist").
			Mark(ierr.ErrNotFound)
	}
	return rows[0], nil
}

package testutil

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/checkout"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

var _ checkout.Repository = (*InMemoryCheckoutStore)(nil)

// InMemoryCheckoutStore implements checkout.Repository
type InMemoryCheckoutStore struct {
	*InMemoryStore[*checkout.Session]
}

// NewInMemoryCheckoutStore creates a new in-memory checkout session repository
func NewInMemoryCheckoutStore() *InMemoryCheckoutStore {
	return &InMemoryCheckoutStore{
		InMemoryStore: NewInMemoryStore[*checkout.Session](),
	}
}

func (s *InMemoryCheckoutStore) Create(ctx context.Context, session *checkout.Session) error {
	if session == nil {
		return ierr.NewError("checkout session cannot be nil").
			WithHint("Checkout session cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if session.EnvironmentID == "" {
		session.EnvironmentID = types.GetEnvironmentID(ctx)
	}
	return s.InMemoryStore.Create(ctx, session.ID, session)
}

func (s *InMemoryCheckoutStore) Get(ctx context.Context, id string) (*checkout.Session, error) {
	return s.InMemoryStore.Get(ctx, id)
}

func (s *InMemoryCheckoutStore) Update(ctx context.Context, session *checkout.Session) error {
	if session == nil {
		return ierr.NewError("checkout session cannot be nil").
			WithHint("Checkout session cannot be nil").
			Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, session.ID, session)
}

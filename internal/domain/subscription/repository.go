package subscription

import (
	"context"

	"github.com/flexprice/rebill/internal/types"
)

// Repository provides access to subscription storage
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, sub *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
}

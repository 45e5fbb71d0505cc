package checkout

import "context"

// Repository provides access to checkout session storage
type Repository interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, session *Session) error
}

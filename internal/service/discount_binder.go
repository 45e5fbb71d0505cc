package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/cache"
	"github.com/flexprice/rebill/internal/domain/discount"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
)

const discountCacheExpiry = 5 * time.Minute

// DiscountBinderService validates discount codes and binds them to checkout
// sessions. A code that is absent, inactive, expired, or owned by another
// tenant binds to nothing: Bind returns nil, nil and callers treat that as
// "no discount applied".
type DiscountBinderService interface {
	// Bind resolves a code within the tenant in context and writes the
	// discount onto the checkout session. Last writer wins for a session.
	Bind(ctx context.Context, sessionID, code string) (*discount.Discount, error)

	// Unbind clears any bound discount from the checkout session
	Unbind(ctx context.Context, sessionID string) error

	// Resolve loads a discount by id and returns nil when it is absent or
	// no longer usable. Used by the fee calculation path at charge time.
	Resolve(ctx context.Context, discountID *string) (*discount.Discount, error)
}

type discountBinderService struct {
	ServiceParams
}

// NewDiscountBinderService creates a new discount binder service
func NewDiscountBinderService(params ServiceParams) DiscountBinderService {
	return &discountBinderService{ServiceParams: params}
}

func (s *discountBinderService) Bind(ctx context.Context, sessionID, code string) (*discount.Discount, error) {
	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	d, err := s.DiscountRepo.GetByCode(ctx, code)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Tenant scoping in the repository makes a foreign tenant's code
			// indistinguishable from an absent one, which is the point
			s.Logger.Infow("discount code did not bind",
				"code", code,
				"checkout_session_id", sessionID,
			)
			return nil, nil
		}
		return nil, err
	}

	if !d.IsUsable(time.Now().UTC()) {
		s.Logger.Infow("discount code is not usable",
			"code", code,
			"discount_id", d.ID,
			"active", d.Active,
		)
		return nil, nil
	}

	session.DiscountID = &d.ID
	if err := s.CheckoutRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.Logger.Infow("bound discount to checkout session",
		"discount_id", d.ID,
		"code", code,
		"checkout_session_id", sessionID,
	)
	return d, nil
}

func (s *discountBinderService) Unbind(ctx context.Context, sessionID string) error {
	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.DiscountID == nil {
		return nil
	}

	session.DiscountID = nil
	return s.CheckoutRepo.Update(ctx, session)
}

func (s *discountBinderService) Resolve(ctx context.Context, discountID *string) (*discount.Discount, error) {
	if discountID == nil {
		return nil, nil
	}

	cacheKey := cache.TenantKey(cache.PrefixDiscount,
		types.GetTenantID(ctx), types.GetEnvironmentID(ctx), *discountID)
	if cached, ok := s.Cache.Get(ctx, cacheKey); ok {
		if d, ok := cached.(*discount.Discount); ok {
			return s.usableOrNil(d), nil
		}
	}

	d, err := s.DiscountRepo.Get(ctx, *discountID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("bound discount no longer exists, charging without it",
				"discount_id", *discountID,
			)
			return nil, nil
		}
		return nil, err
	}

	s.Cache.Set(ctx, cacheKey, d, discountCacheExpiry)
	return s.usableOrNil(d), nil
}

func (s *discountBinderService) usableOrNil(d *discount.Discount) *discount.Discount {
	if d.IsUsable(time.Now().UTC()) {
		return d
	}
	s.Logger.Infow("bound discount is no longer usable, charging without it",
		"discount_id", d.ID,
		"active", d.Active,
	)
	return nil
}

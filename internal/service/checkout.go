package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/domain/checkout"
	ierr "github.com/flexprice/rebill/internal/errors"
)

// CheckoutService manages pre-subscription checkout sessions. A discount
// bound to a session is copied onto the subscription when the session
// completes.
type CheckoutService interface {
	CreateSession(ctx context.Context, req *dto.CreateCheckoutSessionRequest) (*dto.CheckoutSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*dto.CheckoutSessionResponse, error)
	BindDiscount(ctx context.Context, sessionID string, req *dto.BindDiscountRequest) (*dto.CheckoutSessionResponse, error)
	UnbindDiscount(ctx context.Context, sessionID string) (*dto.CheckoutSessionResponse, error)
	Complete(ctx context.Context, sessionID string, req *dto.CompleteCheckoutRequest) (*dto.SubscriptionResponse, error)
}

type checkoutService struct {
	ServiceParams
	binder        DiscountBinderService
	subscriptions SubscriptionService
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(params ServiceParams, binder DiscountBinderService, subscriptions SubscriptionService) CheckoutService {
	return &checkoutService{
		ServiceParams: params,
		binder:        binder,
		subscriptions: subscriptions,
	}
}

func (s *checkoutService) CreateSession(ctx context.Context, req *dto.CreateCheckoutSessionRequest) (*dto.CheckoutSessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	session := req.ToSession(ctx)
	if err := s.CheckoutRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.Logger.Infow("created checkout session",
		"checkout_session_id", session.ID,
		"customer_id", session.CustomerID,
		"expires_at", session.ExpiresAt,
	)
	return &dto.CheckoutSessionResponse{Session: session}, nil
}

func (s *checkoutService) GetSession(ctx context.Context, sessionID string) (*dto.CheckoutSessionResponse, error) {
	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutSessionResponse{
		Session:         session,
		DiscountApplied: session.DiscountID != nil,
	}, nil
}

func (s *checkoutService) BindDiscount(ctx context.Context, sessionID string, req *dto.BindDiscountRequest) (*dto.CheckoutSessionResponse, error) {
	d, err := s.binder.Bind(ctx, sessionID, req.Code)
	if err != nil {
		return nil, err
	}

	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutSessionResponse{
		Session:         session,
		DiscountApplied: d != nil,
	}, nil
}

func (s *checkoutService) UnbindDiscount(ctx context.Context, sessionID string) (*dto.CheckoutSessionResponse, error) {
	if err := s.binder.Unbind(ctx, sessionID); err != nil {
		return nil, err
	}

	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &dto.CheckoutSessionResponse{Session: session}, nil
}

// Complete turns an open session into a subscription. The bound discount, if
// still usable, carries over to every renewal.
func (s *checkoutService) Complete(ctx context.Context, sessionID string, req *dto.CompleteCheckoutRequest) (*dto.SubscriptionResponse, error) {
	session, err := s.CheckoutRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.SessionStatus == checkout.SessionStatusComplete {
		if session.SubscriptionID != nil {
			return s.subscriptions.Get(ctx, *session.SubscriptionID)
		}
		return nil, ierr.NewError("completed session has no subscription").
			WithHint("Checkout session is in an inconsistent state").
			Mark(ierr.ErrSystem)
	}
	if session.SessionStatus == checkout.SessionStatusExpired || time.Now().UTC().After(session.ExpiresAt) {
		if session.SessionStatus != checkout.SessionStatusExpired {
			session.SessionStatus = checkout.SessionStatusExpired
			if err := s.CheckoutRepo.Update(ctx, session); err != nil {
				return nil, err
			}
		}
		return nil, ierr.NewError("checkout session expired").
			WithHintf("Checkout session %s can no longer be completed", sessionID).
			Mark(ierr.ErrInvalidOperation)
	}

	createReq := &dto.CreateSubscriptionRequest{
		CustomerID:           session.CustomerID,
		PlanName:             session.PlanName,
		Amount:               session.Amount,
		Currency:             session.Currency,
		BillingInterval:      session.BillingInterval,
		BillingIntervalCount: session.BillingIntervalCount,
		TaxRatePercent:       req.TaxRatePercent,
		TrialEnd:             req.TrialEnd,
	}

	subResp, err := s.subscriptions.Create(ctx, createReq)
	if err != nil {
		return nil, err
	}

	// Copy the session's bound discount onto the subscription
	if session.DiscountID != nil {
		sub := subResp.Subscription
		sub.DiscountID = session.DiscountID
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
	}

	session.SessionStatus = checkout.SessionStatusComplete
	session.SubscriptionID = &subResp.Subscription.ID
	if err := s.CheckoutRepo.Update(ctx, session); err != nil {
		return nil, err
	}

	s.Logger.Infow("completed checkout session",
		"checkout_session_id", session.ID,
		"subscription_id", subResp.Subscription.ID,
	)
	return subResp, nil
}

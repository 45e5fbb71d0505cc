package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/domain/payment"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
)

// SubscriptionService is the CRUD surface of subscriptions. Lifecycle
// mutation beyond creation and cancellation belongs to the billing period
// state machine.
type SubscriptionService interface {
	Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	Get(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error)
	List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	Cancel(ctx context.Context, subscriptionID string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ListPayments(ctx context.Context, subscriptionID string) ([]*payment.Payment, error)
}

type subscriptionService struct {
	ServiceParams
	periods BillingPeriodService
	binder  DiscountBinderService
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(params ServiceParams, periods BillingPeriodService, binder DiscountBinderService) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		periods:       periods,
		binder:        binder,
	}
}

func (s *subscriptionService) Create(ctx context.Context, req *dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Customer must exist before we commit to charging them
	if _, err := s.CustomerRepo.Get(ctx, req.CustomerID); err != nil {
		return nil, err
	}

	sub := req.ToSubscription(ctx)

	if req.DiscountCode != nil {
		d, err := s.DiscountRepo.GetByCode(ctx, *req.DiscountCode)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
		// An unusable code applies no discount rather than failing creation
		if err == nil && d.IsUsable(time.Now().UTC()) {
			sub.DiscountID = &d.ID
		}
	}

	now := time.Now().UTC()
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		period, err := s.periods.StartInitialPeriod(ctx, sub, now)
		if err != nil {
			return err
		}
		sub.CurrentPeriodStart = period.PeriodStart
		sub.CurrentPeriodEnd = period.PeriodEnd
		if err := sub.Validate(); err != nil {
			return err
		}
		return s.SubRepo.Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("created subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"subscription_status", sub.SubscriptionStatus,
		"current_period_end", sub.CurrentPeriodEnd,
	)
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) Get(ctx context.Context, subscriptionID string) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) List(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &dto.ListSubscriptionsResponse{
		Items: lo.Map(subs, func(sub *subscription.Subscription, _ int) *dto.SubscriptionResponse {
			return &dto.SubscriptionResponse{Subscription: sub}
		}),
		Total: len(subs),
	}, nil
}

// Cancel either flags the subscription for cancellation at the period's
// natural end or cancels immediately by driving the state machine now.
func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID string, req *dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus.IsTerminal() {
		return &dto.SubscriptionResponse{Subscription: sub}, nil
	}

	now := time.Now().UTC()

	if req != nil && req.AtPeriodEnd {
		sub.CancelAt = lo.ToPtr(sub.CurrentPeriodEnd)
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}
		s.Logger.Infow("subscription flagged for cancellation at period end",
			"subscription_id", sub.ID,
			"cancel_at", sub.CancelAt,
		)
		return &dto.SubscriptionResponse{Subscription: sub}, nil
	}

	// Immediate cancellation: flag and drive the transition synchronously
	sub.CancelAt = lo.ToPtr(now)
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	period, err := s.PeriodRepo.GetInProgressBySubscription(ctx, subscriptionID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	} else {
		if err := s.periods.AttemptTransition(ctx, period.ID, now); err != nil {
			return nil, err
		}
	}

	sub, err = s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return &dto.SubscriptionResponse{Subscription: sub}, nil
}

func (s *subscriptionService) ListPayments(ctx context.Context, subscriptionID string) ([]*payment.Payment, error) {
	periods, err := s.PeriodRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var all []*payment.Payment
	for _, period := range periods {
		runs, err := s.RunRepo.ListByPeriod(ctx, period.ID)
		if err != nil {
			return nil, err
		}
		for _, run := range runs {
			payments, err := s.PaymentRepo.ListByBillingRun(ctx, run.ID)
			if err != nil {
				return nil, err
			}
			all = append(all, payments...)
		}
	}
	return all, nil
}

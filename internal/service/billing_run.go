package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/rebill/internal/domain/billingrun"
	"github.com/flexprice/rebill/internal/domain/feecalculation"
	"github.com/flexprice/rebill/internal/domain/payment"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/gateway"
	"github.com/flexprice/rebill/internal/idempotency"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
)

// BillingRunService executes charge attempts for billing runs. Execute is
// safe under duplicate dispatch: the scheduled-status check is the primary
// idempotency guard, and the gateway idempotency key derived from
// (billing run, attempt count) makes a crash-retried submission harmless.
type BillingRunService interface {
	// Execute attempts the charge for a scheduled billing run. Calling it on
	// a run in any other status is a no-op, never an error.
	Execute(ctx context.Context, billingRunID string, now time.Time) error

	// HandleChargeFailure applies the backoff-or-abandon decision to a run
	// whose charge failed, synchronously or via a gateway event.
	HandleChargeFailure(ctx context.Context, run *billingrun.BillingRun, reason string, now time.Time) error

	// HandleChargeSuccess finalizes a run whose charge succeeded and drives
	// the owning period's transition.
	HandleChargeSuccess(ctx context.Context, run *billingrun.BillingRun, now time.Time) error

	// Get returns one billing run
	Get(ctx context.Context, billingRunID string) (*billingrun.BillingRun, error)

	// ListByPeriod returns all runs of a billing period
	ListByPeriod(ctx context.Context, billingPeriodID string) ([]*billingrun.BillingRun, error)
}

type billingRunService struct {
	ServiceParams
	feeCalc FeeCalculationService
}

// NewBillingRunService creates a new billing run service
func NewBillingRunService(params ServiceParams, feeCalc FeeCalculationService) BillingRunService {
	return &billingRunService{
		ServiceParams: params,
		feeCalc:       feeCalc,
	}
}

func (s *billingRunService) Execute(ctx context.Context, billingRunID string, now time.Time) error {
	var (
		run       *billingrun.BillingRun
		pay       *payment.Payment
		chargeReq *gateway.ChargeRequest
	)

	// Phase one: claim the run and price the charge inside one transaction.
	// The gateway call happens outside it so a slow processor never holds a
	// database transaction open.
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		run, err = s.RunRepo.Get(ctx, billingRunID)
		if err != nil {
			return err
		}
		if run.RunStatus != types.BillingRunStatusScheduled {
			s.Logger.Debugw("execute on non-scheduled run is a no-op",
				"billing_run_id", run.ID,
				"run_status", run.RunStatus,
			)
			run = nil
			return nil
		}
		if run.ScheduledFor.After(now) {
			s.Logger.Debugw("run not due yet",
				"billing_run_id", run.ID,
				"scheduled_for", run.ScheduledFor,
			)
			run = nil
			return nil
		}

		period, err := s.PeriodRepo.Get(ctx, run.BillingPeriodID)
		if err != nil {
			return err
		}
		if period.PeriodStatus.IsTerminal() {
			// Cancellation raced ahead of us; abandon rather than charge
			run.RunStatus = types.BillingRunStatusAbandoned
			run.FailureReason = lo.ToPtr("billing period is terminal")
			if err := s.RunRepo.Update(ctx, run); err != nil {
				return err
			}
			run = nil
			return nil
		}

		sub, err := s.SubRepo.Get(ctx, run.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus.IsTerminal() {
			run.RunStatus = types.BillingRunStatusAbandoned
			run.FailureReason = lo.ToPtr("subscription is terminal")
			if err := s.RunRepo.Update(ctx, run); err != nil {
				return err
			}
			run = nil
			return nil
		}

		run.RunStatus = types.BillingRunStatusInProgress
		run.AttemptCount++
		run.LastAttemptAt = lo.ToPtr(now)

		// Price the charge, reusing an attached snapshot from a prior attempt
		calc, err := s.resolveFeeCalculation(ctx, run, sub, period.ID)
		if err != nil {
			// Pricing failures are permanent; retrying will not fix them
			run.RunStatus = types.BillingRunStatusFailed
			run.FailureReason = lo.ToPtr(err.Error())
			if uerr := s.RunRepo.Update(ctx, run); uerr != nil {
				return uerr
			}
			run = nil
			s.Logger.Errorw("billing run failed permanently on pricing",
				"billing_run_id", billingRunID,
				"error", err,
			)
			return nil
		}
		run.FeeCalculationID = &calc.ID
		if err := s.RunRepo.Update(ctx, run); err != nil {
			return err
		}

		if calc.TotalDue.IsZero() {
			// Nothing owed; the run succeeds without touching the gateway
			return nil
		}

		cust, err := s.CustomerRepo.Get(ctx, sub.CustomerID)
		if err != nil {
			return err
		}
		if cust.GatewayCustomerID == nil || cust.DefaultPaymentMethodID == nil {
			run.RunStatus = types.BillingRunStatusFailed
			run.FailureReason = lo.ToPtr("customer has no chargeable payment method")
			if uerr := s.RunRepo.Update(ctx, run); uerr != nil {
				return uerr
			}
			run = nil
			return nil
		}

		key := s.IdempotencyGen.GenerateKey(idempotency.ScopeCharge, map[string]interface{}{
			"billing_run_id": run.ID,
			"attempt_count":  run.AttemptCount,
		})

		// The payment row commits before the gateway submission so a
		// webhook can never arrive for a payment this system has no row for
		pay = &payment.Payment{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
			BillingRunID:   &run.ID,
			IdempotencyKey: key,
			Amount:         calc.TotalDue,
			Currency:       calc.Currency,
			PaymentStatus:  types.PaymentStatusProcessing,
			EnvironmentID:  run.EnvironmentID,
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if err := s.PaymentRepo.Create(ctx, pay); err != nil {
			if ierr.IsAlreadyExists(err) {
				// Same (run, attempt) already submitted by a crashed worker;
				// reuse its payment row and let the gateway deduplicate
				existing, gerr := s.PaymentRepo.GetByIdempotencyKey(ctx, key)
				if gerr != nil {
					return gerr
				}
				pay = existing
			} else {
				return err
			}
		}

		chargeReq = &gateway.ChargeRequest{
			Amount:            calc.TotalDue,
			Currency:          calc.Currency,
			GatewayCustomerID: *cust.GatewayCustomerID,
			PaymentMethodID:   *cust.DefaultPaymentMethodID,
			IdempotencyKey:    key,
			Metadata: map[string]string{
				"billing_run_id":    run.ID,
				"billing_period_id": run.BillingPeriodID,
				"subscription_id":   run.SubscriptionID,
				"payment_id":        pay.ID,
				"environment_id":    run.EnvironmentID,
			},
		}
		return nil
	})
	if err != nil {
		return err
	}
	if run == nil {
		// Guarded no-op or permanent failure already recorded
		return nil
	}

	if chargeReq == nil {
		// Zero-due run
		return s.HandleChargeSuccess(ctx, run, now)
	}

	result, err := s.Gateway.SubmitCharge(ctx, chargeReq)
	if err != nil {
		pay.PaymentStatus = types.PaymentStatusFailed
		pay.FailedAt = lo.ToPtr(now)
		pay.ErrorMessage = lo.ToPtr(err.Error())
		if uerr := s.PaymentRepo.Update(ctx, pay); uerr != nil {
			return uerr
		}
		return s.HandleChargeFailure(ctx, run, err.Error(), now)
	}

	pay.GatewayPaymentID = &result.GatewayPaymentID
	pay.PaymentStatus = result.Status
	if result.Status == types.PaymentStatusSucceeded {
		pay.SucceededAt = lo.ToPtr(now)
	}
	if err := s.PaymentRepo.Update(ctx, pay); err != nil {
		return err
	}

	switch result.Status {
	case types.PaymentStatusSucceeded:
		// Confirmed synchronously; no need to wait for the webhook
		return s.HandleChargeSuccess(ctx, run, now)
	case types.PaymentStatusFailed, types.PaymentStatusCancelled:
		return s.HandleChargeFailure(ctx, run, "gateway reported terminal failure", now)
	default:
		// Accepted, pending async confirmation; the run stays in progress
		// and the reconciler finalizes it when the gateway event lands
		s.Logger.Infow("charge submitted, awaiting gateway confirmation",
			"billing_run_id", run.ID,
			"payment_id", pay.ID,
			"gateway_payment_id", result.GatewayPaymentID,
			"payment_status", result.Status,
		)
		return nil
	}
}

// resolveFeeCalculation reuses the snapshot attached by a previous attempt or
// computes a fresh one for the period.
func (s *billingRunService) resolveFeeCalculation(ctx context.Context, run *billingrun.BillingRun, sub *subscription.Subscription, billingPeriodID string) (*feecalculation.FeeCalculation, error) {
	if run.FeeCalculationID != nil {
		calc, err := s.FeeCalcRepo.Get(ctx, *run.FeeCalculationID)
		if err == nil {
			return calc, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}
	return s.feeCalc.SnapshotForPeriod(ctx, sub, billingPeriodID)
}

func (s *billingRunService) HandleChargeSuccess(ctx context.Context, run *billingrun.BillingRun, now time.Time) error {
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.RunRepo.Get(ctx, run.ID)
		if err != nil {
			return err
		}
		if current.RunStatus == types.BillingRunStatusSucceeded {
			return nil
		}
		current.RunStatus = types.BillingRunStatusSucceeded
		current.FailureReason = nil
		if err := s.RunRepo.Update(ctx, current); err != nil {
			return err
		}

		// A success recovers a past-due subscription
		sub, err := s.SubRepo.Get(ctx, current.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.SubscriptionStatus == types.SubscriptionStatusPastDue {
			sub.SubscriptionStatus = types.SubscriptionStatusActive
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("billing run succeeded",
		"billing_run_id", run.ID,
		"billing_period_id", run.BillingPeriodID,
		"attempt_count", run.AttemptCount,
	)

	// Drive period completion and next-period creation
	return publishTask(ctx, s.Publisher, &types.TaskMessage{
		Kind:            types.TaskKindTransitionPeriod,
		SubscriptionID:  run.SubscriptionID,
		BillingPeriodID: run.BillingPeriodID,
	})
}

func (s *billingRunService) HandleChargeFailure(ctx context.Context, run *billingrun.BillingRun, reason string, now time.Time) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.RunRepo.Get(ctx, run.ID)
		if err != nil {
			return err
		}
		if current.RunStatus.IsTerminal() {
			// Raced with a success or an earlier failure decision
			return nil
		}

		if current.AttemptCount >= s.Config.Billing.MaxAttempts {
			return s.abandon(ctx, current, reason, now)
		}

		delay := retryDelay(s.Config.Billing.RetryBackoffInitial, s.Config.Billing.RetryBackoffCap, current.AttemptCount)
		current.RunStatus = types.BillingRunStatusScheduled
		current.ScheduledFor = now.Add(delay)
		current.FailureReason = &reason
		if err := s.RunRepo.Update(ctx, current); err != nil {
			return err
		}

		s.Logger.Warnw("charge failed, retry scheduled",
			"billing_run_id", current.ID,
			"attempt_count", current.AttemptCount,
			"max_attempts", s.Config.Billing.MaxAttempts,
			"retry_at", current.ScheduledFor,
			"reason", reason,
		)
		return nil
	})
}

// abandon exhausts the run and applies the configured exhaustion action to
// the subscription. No further run is created for the period without
// explicit intervention.
func (s *billingRunService) abandon(ctx context.Context, run *billingrun.BillingRun, reason string, now time.Time) error {
	run.RunStatus = types.BillingRunStatusAbandoned
	run.FailureReason = &reason
	if err := s.RunRepo.Update(ctx, run); err != nil {
		return err
	}

	sub, err := s.SubRepo.Get(ctx, run.SubscriptionID)
	if err != nil {
		return err
	}

	switch s.Config.Billing.ExhaustionAction {
	case types.ExhaustionActionCancel:
		if !sub.SubscriptionStatus.IsTerminal() {
			sub.SubscriptionStatus = types.SubscriptionStatusCancelled
			sub.CancelledAt = lo.ToPtr(now)
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
		period, err := s.PeriodRepo.Get(ctx, run.BillingPeriodID)
		if err != nil {
			return err
		}
		if !period.PeriodStatus.IsTerminal() {
			period.PeriodStatus = types.BillingPeriodStatusCancelled
			if err := s.PeriodRepo.Update(ctx, period); err != nil {
				return err
			}
		}
	default:
		if !sub.SubscriptionStatus.IsTerminal() {
			sub.SubscriptionStatus = types.SubscriptionStatusPastDue
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
		}
	}

	s.Logger.Errorw("billing run abandoned after exhausting retries",
		"billing_run_id", run.ID,
		"billing_period_id", run.BillingPeriodID,
		"subscription_id", run.SubscriptionID,
		"attempt_count", run.AttemptCount,
		"exhaustion_action", s.Config.Billing.ExhaustionAction,
		"reason", reason,
	)
	return nil
}

func (s *billingRunService) Get(ctx context.Context, billingRunID string) (*billingrun.BillingRun, error) {
	return s.RunRepo.Get(ctx, billingRunID)
}

func (s *billingRunService) ListByPeriod(ctx context.Context, billingPeriodID string) ([]*billingrun.BillingRun, error) {
	return s.RunRepo.ListByPeriod(ctx, billingPeriodID)
}

// retryDelay computes the exponential backoff delay before the next attempt:
// base * 2^attemptCount, capped.
func retryDelay(base, maxDelay time.Duration, attemptCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attemptCount; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

package service

import (
	"context"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/domain/payment"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/samber/lo"
)

// PaymentReconcilerService applies asynchronous gateway events to durable
// billing state. Events arrive at-least-once and possibly out of order; the
// reconciler absorbs duplicates silently and never lets a later-arriving
// non-terminal event regress a terminal payment status. A succeeded event
// always wins over any other status for the same payment.
type PaymentReconcilerService interface {
	Reconcile(ctx context.Context, event *dto.GatewayEvent) error
}

type paymentReconcilerService struct {
	ServiceParams
	runs BillingRunService
}

// NewPaymentReconcilerService creates a new payment reconciler service
func NewPaymentReconcilerService(params ServiceParams, runs BillingRunService) PaymentReconcilerService {
	return &paymentReconcilerService{
		ServiceParams: params,
		runs:          runs,
	}
}

func (s *paymentReconcilerService) Reconcile(ctx context.Context, event *dto.GatewayEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	incoming, err := types.ParseGatewayEventStatus(event.Status)
	if err != nil {
		return err
	}

	pay, err := s.PaymentRepo.GetByGatewayPaymentID(ctx, event.GatewayPaymentID)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Either an entity this system did not create, or the event
			// outran the payment row commit; the gateway's retry policy
			// redelivers it later.
			s.Logger.Infow("discarding gateway event for unknown payment",
				"gateway_event_id", event.EventID,
				"gateway_payment_id", event.GatewayPaymentID,
				"status", event.Status,
			)
			return nil
		}
		return err
	}

	// Webhook deliveries carry no tenant scope; restore it from the row
	ctx = types.SetTenantID(ctx, pay.TenantID)
	ctx = types.SetEnvironmentID(ctx, pay.EnvironmentID)

	now := time.Now().UTC()

	var applied bool
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.PaymentRepo.Get(ctx, pay.ID)
		if err != nil {
			return err
		}

		if !shouldApply(current.PaymentStatus, incoming) {
			s.Logger.Debugw("gateway event absorbed as duplicate or stale",
				"gateway_event_id", event.EventID,
				"payment_id", current.ID,
				"current_status", current.PaymentStatus,
				"incoming_status", incoming,
			)
			return nil
		}

		current.PaymentStatus = incoming
		switch incoming {
		case types.PaymentStatusSucceeded:
			current.SucceededAt = lo.ToPtr(event.OccurredAt)
			current.FailedAt = nil
			current.ErrorMessage = nil
		case types.PaymentStatusFailed, types.PaymentStatusCancelled:
			current.FailedAt = lo.ToPtr(event.OccurredAt)
			if event.ErrorMessage != "" {
				current.ErrorMessage = &event.ErrorMessage
			}
		}
		if err := s.PaymentRepo.Update(ctx, current); err != nil {
			return err
		}

		applied = true
		pay = current
		return nil
	})
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}

	s.Logger.Infow("applied gateway event",
		"gateway_event_id", event.EventID,
		"payment_id", pay.ID,
		"payment_status", pay.PaymentStatus,
	)

	return s.propagateToRun(ctx, pay, incoming, now)
}

// propagateToRun carries a terminal payment outcome onto the owning billing
// run. Non-terminal updates touch only the payment.
func (s *paymentReconcilerService) propagateToRun(ctx context.Context, pay *payment.Payment, incoming types.PaymentStatus, now time.Time) error {
	if pay.BillingRunID == nil {
		return nil
	}

	run, err := s.RunRepo.Get(ctx, *pay.BillingRunID)
	if err != nil {
		return err
	}

	switch incoming {
	case types.PaymentStatusSucceeded:
		return s.runs.HandleChargeSuccess(ctx, run, now)
	case types.PaymentStatusFailed, types.PaymentStatusCancelled:
		reason := "gateway reported terminal failure"
		if pay.ErrorMessage != nil {
			reason = *pay.ErrorMessage
		}
		return s.runs.HandleChargeFailure(ctx, run, reason, now)
	default:
		return nil
	}
}

// shouldApply encodes terminal-status precedence: succeeded is sticky and
// always wins; other terminal statuses absorb everything except succeeded.
func shouldApply(current, incoming types.PaymentStatus) bool {
	if current == incoming {
		return false
	}
	if current == types.PaymentStatusSucceeded {
		return false
	}
	if incoming == types.PaymentStatusSucceeded {
		return true
	}
	if current.IsTerminal() {
		// failed/cancelled only yield to succeeded
		return false
	}
	return true
}

package types

import (
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/samber/lo"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusProcessing     PaymentStatus = "PROCESSING"
	PaymentStatusSucceeded      PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed         PaymentStatus = "FAILED"
	PaymentStatusCancelled      PaymentStatus = "CANCELLED"
	PaymentStatusRequiresAction PaymentStatus = "REQUIRES_ACTION"
)

func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true once the gateway can no longer change the outcome,
// with one exception handled by the reconciler: a succeeded event always wins.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusSucceeded ||
		s == PaymentStatusFailed ||
		s == PaymentStatusCancelled
}

func (s PaymentStatus) Validate() error {
	allowed := []PaymentStatus{
		PaymentStatusProcessing,
		PaymentStatusSucceeded,
		PaymentStatusFailed,
		PaymentStatusCancelled,
		PaymentStatusRequiresAction,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid payment status").
			WithHint("Invalid payment status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ParseGatewayEventStatus maps a gateway event status string onto the
// internal payment status. Unknown statuses are a validation error so
// the webhook edge can reject malformed envelopes early.
func ParseGatewayEventStatus(s string) (PaymentStatus, error) {
	switch s {
	case "processing":
		return PaymentStatusProcessing, nil
	case "succeeded":
		return PaymentStatusSucceeded, nil
	case "failed":
		return PaymentStatusFailed, nil
	case "canceled", "cancelled":
		return PaymentStatusCancelled, nil
	case "requires_action":
		return PaymentStatusRequiresAction, nil
	default:
		return "", ierr.NewError("unknown gateway event status").
			WithHint("Gateway delivered an event with an unsupported status").
			WithReportableDetails(map[string]any{
				"status": s,
			}).
			Mark(ierr.ErrValidation)
	}
}

package dto

import (
	"time"

	ierr "github.com/flexprice/rebill/internal/errors"
)

// GatewayEvent is the normalized form of a payment gateway webhook event.
// The webhook ingress authenticates and parses the raw envelope into this
// shape before handing it to the reconciler.
type GatewayEvent struct {
	// Gateway-assigned event identifier, used for dedup logging
	EventID string `json:"event_id"`
	// The gateway's charge / payment intent identifier
	GatewayPaymentID string `json:"gateway_payment_id"`
	// Raw gateway status: processing, succeeded, failed, requires_action, canceled
	Status string `json:"status"`
	// When the gateway recorded the event
	OccurredAt time.Time `json:"occurred_at"`
	// Gateway-reported failure detail, if any
	ErrorMessage string `json:"error_message,omitempty"`
}

func (e *GatewayEvent) Validate() error {
	if e.GatewayPaymentID == "" {
		return ierr.NewError("gateway event missing payment id").
			WithHint("Gateway events must reference a charge").
			Mark(ierr.ErrValidation)
	}
	if e.Status == "" {
		return ierr.NewError("gateway event missing status").
			WithHint("Gateway events must carry a status").
			Mark(ierr.ErrValidation)
	}
	return nil
}

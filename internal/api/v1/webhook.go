package v1

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/flexprice/rebill/internal/api/dto"
	"github.com/flexprice/rebill/internal/config"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// WebhookHandler is the gateway webhook ingress. It authenticates the
// envelope, normalizes the event, and hands it to the reconciler. Events the
// reconciler absorbs as duplicates still return 200 so the gateway stops
// redelivering them.
type WebhookHandler struct {
	reconciler service.PaymentReconcilerService
	cfg        *config.Configuration
	log        *logger.Logger
}

func NewWebhookHandler(reconciler service.PaymentReconcilerService, cfg *config.Configuration, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		cfg:        cfg,
		log:        log,
	}
}

func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.cfg.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Errorw("stripe webhook verification failed", "error", err)
		c.Error(ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrPermissionDenied))
		return
	}

	gatewayEvent, ok := h.normalize(&event)
	if !ok {
		// Event types this system does not act on are acknowledged as-is
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if err := h.reconciler.Reconcile(c.Request.Context(), gatewayEvent); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// normalize maps a stripe payment intent event onto the internal gateway
// event shape. Returns false for event types the reconciler does not handle.
func (h *WebhookHandler) normalize(event *stripe.Event) (*dto.GatewayEvent, bool) {
	var status string
	switch event.Type {
	case "payment_intent.succeeded":
		status = "succeeded"
	case "payment_intent.payment_failed":
		status = "failed"
	case "payment_intent.canceled":
		status = "canceled"
	case "payment_intent.processing":
		status = "processing"
	case "payment_intent.requires_action":
		status = "requires_action"
	default:
		h.log.Debugw("ignoring unhandled stripe event type",
			"event_type", event.Type,
			"event_id", event.ID,
		)
		return nil, false
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.log.Errorw("failed to parse payment intent from event",
			"event_id", event.ID,
			"error", err,
		)
		return nil, false
	}

	gatewayEvent := &dto.GatewayEvent{
		EventID:          event.ID,
		GatewayPaymentID: intent.ID,
		Status:           status,
		OccurredAt:       time.Unix(event.Created, 0).UTC(),
	}
	if intent.LastPaymentError != nil {
		gatewayEvent.ErrorMessage = intent.LastPaymentError.Msg
	}
	return gatewayEvent, true
}

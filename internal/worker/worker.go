package worker

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/pubsub"
	"github.com/flexprice/rebill/internal/pubsub/router"
	"github.com/flexprice/rebill/internal/service"
	"github.com/flexprice/rebill/internal/types"
)

// Worker consumes billing tasks from the queue and invokes the matching
// idempotent handler. Delivery is at-least-once; the handlers' status guards
// absorb redelivery.
type Worker struct {
	router     *router.Router
	subscriber pubsub.Subscriber
	periods    service.BillingPeriodService
	runs       service.BillingRunService
	logger     *logger.Logger
}

// NewWorker creates a new billing task worker
func NewWorker(
	r *router.Router,
	subscriber pubsub.Subscriber,
	periods service.BillingPeriodService,
	runs service.BillingRunService,
	logger *logger.Logger,
) *Worker {
	w := &Worker{
		router:     r,
		subscriber: subscriber,
		periods:    periods,
		runs:       runs,
		logger:     logger,
	}
	w.registerHandlers()
	return w
}

func (w *Worker) registerHandlers() {
	w.router.AddNoPublishHandler(
		"billing_period_transition",
		types.TaskKindTransitionPeriod.Topic(),
		w.subscriber,
		w.handleTransitionPeriod,
	)
	w.router.AddNoPublishHandler(
		"billing_run_execute",
		types.TaskKindExecuteRun.Topic(),
		w.subscriber,
		w.handleExecuteRun,
	)
}

// Run starts consuming tasks and blocks until the context is cancelled
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("starting billing task worker")
	return w.router.Run(ctx)
}

// Close shuts the worker down
func (w *Worker) Close() error {
	return w.router.Close()
}

func (w *Worker) handleTransitionPeriod(msg *message.Message) error {
	ctx, task, err := w.taskContext(msg)
	if err != nil {
		// Malformed payloads are dropped, not retried
		w.logger.Errorw("dropping malformed transition task",
			"message_uuid", msg.UUID,
			"error", err,
		)
		return nil
	}
	if task.BillingPeriodID == "" {
		w.logger.Errorw("dropping transition task without billing period id",
			"message_uuid", msg.UUID,
		)
		return nil
	}

	if err := w.periods.AttemptTransition(ctx, task.BillingPeriodID, time.Now().UTC()); err != nil {
		if ierr.IsNotFound(err) {
			w.logger.Warnw("transition task references missing period, dropping",
				"billing_period_id", task.BillingPeriodID,
			)
			return nil
		}
		return err
	}
	return nil
}

func (w *Worker) handleExecuteRun(msg *message.Message) error {
	ctx, task, err := w.taskContext(msg)
	if err != nil {
		w.logger.Errorw("dropping malformed execute task",
			"message_uuid", msg.UUID,
			"error", err,
		)
		return nil
	}
	if task.BillingRunID == "" {
		w.logger.Errorw("dropping execute task without billing run id",
			"message_uuid", msg.UUID,
		)
		return nil
	}

	if err := w.runs.Execute(ctx, task.BillingRunID, time.Now().UTC()); err != nil {
		if ierr.IsNotFound(err) {
			w.logger.Warnw("execute task references missing run, dropping",
				"billing_run_id", task.BillingRunID,
			)
			return nil
		}
		return err
	}
	return nil
}

// taskContext decodes the payload and restores the tenant scope it carries
func (w *Worker) taskContext(msg *message.Message) (context.Context, *types.TaskMessage, error) {
	task, err := types.UnmarshalTaskMessage(msg.Payload)
	if err != nil {
		return nil, nil, err
	}

	ctx := msg.Context()
	ctx = types.SetTenantID(ctx, task.TenantID)
	ctx = types.SetEnvironmentID(ctx, task.EnvironmentID)
	ctx = types.SetUserID(ctx, types.DefaultUserID)
	return ctx, task, nil
}

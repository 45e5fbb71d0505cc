package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/rebill/internal/pubsub"
	"github.com/flexprice/rebill/internal/types"
)

// publishTask serializes and publishes a billing task, stamping tenant scope
// from the context when the message does not carry it already.
func publishTask(ctx context.Context, publisher pubsub.Publisher, task *types.TaskMessage) error {
	if task.TenantID == "" {
		task.TenantID = types.GetTenantID(ctx)
	}
	if task.EnvironmentID == "" {
		task.EnvironmentID = types.GetEnvironmentID(ctx)
	}

	payload, err := task.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	return publisher.Publish(ctx, task.Kind.Topic(), msg)
}

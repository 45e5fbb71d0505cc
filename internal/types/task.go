package types

import (
	"encoding/json"

	ierr "github.com/flexprice/rebill/internal/errors"
)

// TaskKind identifies a unit of billing work dispatched through the task
// queue. Each kind maps to one pubsub topic and one idempotent handler.
type TaskKind string

const (
	TaskKindTransitionPeriod TaskKind = "billing.period.transition"
	TaskKindExecuteRun       TaskKind = "billing.run.execute"
)

func (t TaskKind) Topic() string {
	return string(t)
}

// TaskMessage is the wire payload of a billing task. Tenant scope travels
// with the task so handlers can restore request context before touching
// tenant-scoped storage.
type TaskMessage struct {
	Kind            TaskKind `json:"kind"`
	TenantID        string   `json:"tenant_id"`
	EnvironmentID   string   `json:"environment_id"`
	SubscriptionID  string   `json:"subscription_id,omitempty"`
	BillingPeriodID string   `json:"billing_period_id,omitempty"`
	BillingRunID    string   `json:"billing_run_id,omitempty"`
}

// Marshal serializes the task message for publishing
func (m *TaskMessage) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to marshal task message").
			Mark(ierr.ErrSystem)
	}
	return data, nil
}

// UnmarshalTaskMessage decodes a task payload received from the queue
func UnmarshalTaskMessage(data []byte) (*TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to unmarshal task message").
			Mark(ierr.ErrValidation)
	}
	if m.TenantID == "" {
		return nil, ierr.NewError("task message missing tenant id").
			WithHint("Task messages must carry tenant scope").
			Mark(ierr.ErrValidation)
	}
	return &m, nil
}

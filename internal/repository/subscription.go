package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type subscriptionRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewSubscriptionRepository creates a postgres-backed subscription repository
func NewSubscriptionRepository(client postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &subscriptionRepository{
		client: client,
		logger: logger,
	}
}

const subscriptionInsertQuery = `
INSERT INTO subscriptions (
	id, customer_id, plan_name, amount, currency, billing_interval,
	billing_interval_count, subscription_status, tax_rate_percent, discount_id,
	trial_end, cancel_at, cancelled_at, current_period_start, current_period_end,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :customer_id, :plan_name, :amount, :currency, :billing_interval,
	:billing_interval_count, :subscription_status, :tax_rate_percent, :discount_id,
	:trial_end, :cancel_at, :cancelled_at, :current_period_start, :current_period_end,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *subscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	r.logger.Debugw("creating subscription",
		"subscription_id", sub.ID,
		"customer_id", sub.CustomerID,
		"tenant_id", sub.TenantID,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), subscriptionInsertQuery, sub); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A subscription with this identifier already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *subscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `
		SELECT * FROM subscriptions
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &sub, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription with ID %s was not found", id).
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &sub, nil
}

const subscriptionUpdateQuery = `
UPDATE subscriptions SET
	subscription_status = :subscription_status,
	discount_id = :discount_id,
	trial_end = :trial_end,
	cancel_at = :cancel_at,
	cancelled_at = :cancelled_at,
	current_period_start = :current_period_start,
	current_period_end = :current_period_end,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *subscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	sub.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), subscriptionUpdateQuery, sub)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription with ID %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *subscriptionRepository) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	if filter == nil {
		filter = &types.SubscriptionFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}

	conditions := []string{
		"tenant_id = :tenant_id",
		"environment_id = :environment_id",
		"status = :status",
	}
	args := map[string]any{
		"tenant_id":      types.GetTenantID(ctx),
		"environment_id": types.GetEnvironmentID(ctx),
		"status":         filter.GetStatus(),
		"limit":          filter.GetLimit(),
		"offset":         filter.GetOffset(),
	}

	if filter.CustomerID != nil {
		conditions = append(conditions, "customer_id = :customer_id")
		args["customer_id"] = *filter.CustomerID
	}
	if len(filter.SubscriptionStatus) > 0 {
		statuses := make([]string, len(filter.SubscriptionStatus))
		for i, s := range filter.SubscriptionStatus {
			statuses[i] = s.String()
		}
		conditions = append(conditions, "subscription_status IN (:subscription_statuses)")
		args["subscription_statuses"] = statuses
	}
	if filter.ActiveBefore != nil {
		conditions = append(conditions, "created_at < :active_before")
		args["active_before"] = *filter.ActiveBefore
	}

	query := fmt.Sprintf(`
		SELECT * FROM subscriptions
		WHERE %s
		ORDER BY created_at DESC
		LIMIT :limit OFFSET :offset`, strings.Join(conditions, " AND "))

	query, qargs, err := bindNamed(r.client.Querier(ctx), query, args)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to build subscription list query").
			Mark(ierr.ErrDatabase)
	}

	var subs []*subscription.Subscription
	if err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &subs, query, qargs...); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list subscriptions").
			Mark(ierr.ErrDatabase)
	}
	return subs, nil
}

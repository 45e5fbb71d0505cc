package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingperiod"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type billingPeriodRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewBillingPeriodRepository creates a postgres-backed billing period repository
func NewBillingPeriodRepository(client postgres.IClient, logger *logger.Logger) billingperiod.Repository {
	return &billingPeriodRepository{
		client: client,
		logger: logger,
	}
}

const billingPeriodInsertQuery = `
INSERT INTO billing_periods (
	id, subscription_id, period_start, period_end, period_status, trial,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :subscription_id, :period_start, :period_end, :period_status, :trial,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *billingPeriodRepository) Create(ctx context.Context, period *billingperiod.BillingPeriod) error {
	r.logger.Debugw("creating billing period",
		"billing_period_id", period.ID,
		"subscription_id", period.SubscriptionID,
		"period_start", period.PeriodStart,
		"period_end", period.PeriodEnd,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), billingPeriodInsertQuery, period); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A billing period with this identifier already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create billing period").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *billingPeriodRepository) Get(ctx context.Context, id string) (*billingperiod.BillingPeriod, error) {
	var period billingperiod.BillingPeriod
	query := `
		SELECT * FROM billing_periods
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &period, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("billing period not found").
				WithHintf("Billing period with ID %s was not found", id).
				WithReportableDetails(map[string]any{"billing_period_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing period").
			Mark(ierr.ErrDatabase)
	}
	return &period, nil
}

const billingPeriodUpdateQuery = `
UPDATE billing_periods SET
	period_status = :period_status,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *billingPeriodRepository) Update(ctx context.Context, period *billingperiod.BillingPeriod) error {
	period.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), billingPeriodUpdateQuery, period)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update billing period").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("billing period not found").
			WithHintf("Billing period with ID %s was not found", period.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *billingPeriodRepository) GetInProgressBySubscription(ctx context.Context, subscriptionID string) (*billingperiod.BillingPeriod, error) {
	var period billingperiod.BillingPeriod
	query := `
		SELECT * FROM billing_periods
		WHERE subscription_id = $1 AND period_status = $2
			AND tenant_id = $3 AND environment_id = $4 AND status != $5
		ORDER BY period_start DESC
		LIMIT 1`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &period, query,
		subscriptionID, types.BillingPeriodStatusInProgress,
		types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("no in-progress billing period").
				WithHintf("Subscription %s has no in-progress billing period", subscriptionID).
				WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get in-progress billing period").
			Mark(ierr.ErrDatabase)
	}
	return &period, nil
}

func (r *billingPeriodRepository) ListBySubscription(ctx context.Context, subscriptionID string) ([]*billingperiod.BillingPeriod, error) {
	var periods []*billingperiod.BillingPeriod
	query := `
		SELECT * FROM billing_periods
		WHERE subscription_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4
		ORDER BY period_start ASC`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &periods, query,
		subscriptionID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing periods").
			Mark(ierr.ErrDatabase)
	}
	return periods, nil
}

// ListDueAllTenants is called by the scheduler sweep and deliberately skips
// tenant scoping; callers must restore per-row tenant context before acting.
func (r *billingPeriodRepository) ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*billingperiod.BillingPeriod, error) {
	var periods []*billingperiod.BillingPeriod
	query := `
		SELECT * FROM billing_periods
		WHERE period_status = $1 AND period_end <= $2 AND status != $3
		ORDER BY period_end ASC
		LIMIT $4 OFFSET $5`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &periods, query,
		types.BillingPeriodStatusInProgress, now, types.StatusDeleted, limit, offset)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due billing periods").
			Mark(ierr.ErrDatabase)
	}
	return periods, nil
}

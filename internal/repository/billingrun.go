package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/flexprice/rebill/internal/domain/billingrun"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type billingRunRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewBillingRunRepository creates a postgres-backed billing run repository
func NewBillingRunRepository(client postgres.IClient, logger *logger.Logger) billingrun.Repository {
	return &billingRunRepository{
		client: client,
		logger: logger,
	}
}

const billingRunInsertQuery = `
INSERT INTO billing_runs (
	id, billing_period_id, subscription_id, run_status, scheduled_for,
	attempt_count, last_attempt_at, fee_calculation_id, failure_reason,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :billing_period_id, :subscription_id, :run_status, :scheduled_for,
	:attempt_count, :last_attempt_at, :fee_calculation_id, :failure_reason,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *billingRunRepository) Create(ctx context.Context, run *billingrun.BillingRun) error {
	r.logger.Debugw("creating billing run",
		"billing_run_id", run.ID,
		"billing_period_id", run.BillingPeriodID,
		"scheduled_for", run.ScheduledFor,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), billingRunInsertQuery, run); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("An active billing run already exists for this period").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create billing run").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *billingRunRepository) Get(ctx context.Context, id string) (*billingrun.BillingRun, error) {
	var run billingrun.BillingRun
	query := `
		SELECT * FROM billing_runs
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &run, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("billing run not found").
				WithHintf("Billing run with ID %s was not found", id).
				WithReportableDetails(map[string]any{"billing_run_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get billing run").
			Mark(ierr.ErrDatabase)
	}
	return &run, nil
}

const billingRunUpdateQuery = `
UPDATE billing_runs SET
	run_status = :run_status,
	scheduled_for = :scheduled_for,
	attempt_count = :attempt_count,
	last_attempt_at = :last_attempt_at,
	fee_calculation_id = :fee_calculation_id,
	failure_reason = :failure_reason,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *billingRunRepository) Update(ctx context.Context, run *billingrun.BillingRun) error {
	run.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), billingRunUpdateQuery, run)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update billing run").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("billing run not found").
			WithHintf("Billing run with ID %s was not found", run.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *billingRunRepository) GetActiveByPeriod(ctx context.Context, billingPeriodID string) (*billingrun.BillingRun, error) {
	var run billingrun.BillingRun
	query := `
		SELECT * FROM billing_runs
		WHERE billing_period_id = $1 AND run_status IN ($2, $3)
			AND tenant_id = $4 AND environment_id = $5 AND status != $6
		ORDER BY created_at DESC
		LIMIT 1`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &run, query,
		billingPeriodID, types.BillingRunStatusScheduled, types.BillingRunStatusInProgress,
		types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("no active billing run").
				WithHintf("Billing period %s has no active billing run", billingPeriodID).
				WithReportableDetails(map[string]any{"billing_period_id": billingPeriodID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get active billing run").
			Mark(ierr.ErrDatabase)
	}
	return &run, nil
}

func (r *billingRunRepository) ListByPeriod(ctx context.Context, billingPeriodID string) ([]*billingrun.BillingRun, error) {
	var runs []*billingrun.BillingRun
	query := `
		SELECT * FROM billing_runs
		WHERE billing_period_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4
		ORDER BY created_at ASC`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &runs, query,
		billingPeriodID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list billing runs").
			Mark(ierr.ErrDatabase)
	}
	return runs, nil
}

// ListDueAllTenants is called by the scheduler sweep and deliberately skips
// tenant scoping; callers must restore per-row tenant context before acting.
func (r *billingRunRepository) ListDueAllTenants(ctx context.Context, now time.Time, limit, offset int) ([]*billingrun.BillingRun, error) {
	var runs []*billingrun.BillingRun
	query := `
		SELECT * FROM billing_runs
		WHERE run_status = $1 AND scheduled_for <= $2 AND status != $3
		ORDER BY scheduled_for ASC
		LIMIT $4 OFFSET $5`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &runs, query,
		types.BillingRunStatusScheduled, now, types.StatusDeleted, limit, offset)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list due billing runs").
			Mark(ierr.ErrDatabase)
	}
	return runs, nil
}

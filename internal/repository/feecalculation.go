package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/rebill/internal/domain/feecalculation"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type feeCalculationRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewFeeCalculationRepository creates a postgres-backed fee calculation
// repository. The table is append-only.
func NewFeeCalculationRepository(client postgres.IClient, logger *logger.Logger) feecalculation.Repository {
	return &feeCalculationRepository{
		client: client,
		logger: logger,
	}
}

const feeCalculationInsertQuery = `
INSERT INTO fee_calculations (
	id, billing_period_id, subtotal, discount_amount, tax_amount,
	platform_fee_amount, total_due, discount_id, currency,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :billing_period_id, :subtotal, :discount_amount, :tax_amount,
	:platform_fee_amount, :total_due, :discount_id, :currency,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *feeCalculationRepository) Create(ctx context.Context, calc *feecalculation.FeeCalculation) error {
	r.logger.Debugw("creating fee calculation",
		"fee_calculation_id", calc.ID,
		"billing_period_id", calc.BillingPeriodID,
		"total_due", calc.TotalDue,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), feeCalculationInsertQuery, calc); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A fee calculation with this identifier already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create fee calculation").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *feeCalculationRepository) Get(ctx context.Context, id string) (*feecalculation.FeeCalculation, error) {
	var calc feecalculation.FeeCalculation
	query := `
		SELECT * FROM fee_calculations
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &calc, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("fee calculation not found").
				WithHintf("Fee calculation with ID %s was not found", id).
				WithReportableDetails(map[string]any{"fee_calculation_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get fee calculation").
			Mark(ierr.ErrDatabase)
	}
	return &calc, nil
}

func (r *feeCalculationRepository) GetLatestByPeriod(ctx context.Context, billingPeriodID string) (*feecalculation.FeeCalculation, error) {
	var calc feecalculation.FeeCalculation
	query := `
		SELECT * FROM fee_calculations
		WHERE billing_period_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4
		ORDER BY created_at DESC
		LIMIT 1`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &calc, query,
		billingPeriodID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("fee calculation not found").
				WithHintf("Billing period %s has no fee calculation", billingPeriodID).
				WithReportableDetails(map[string]any{"billing_period_id": billingPeriodID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get latest fee calculation").
			Mark(ierr.ErrDatabase)
	}
	return &calc, nil
}

func (r *feeCalculationRepository) ListByPeriod(ctx context.Context, billingPeriodID string) ([]*feecalculation.FeeCalculation, error) {
	var calcs []*feecalculation.FeeCalculation
	query := `
		SELECT * FROM fee_calculations
		WHERE billing_period_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4
		ORDER BY created_at DESC`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &calcs, query,
		billingPeriodID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list fee calculations").
			Mark(ierr.ErrDatabase)
	}
	return calcs, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/rebill/internal/domain/discount"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type discountRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewDiscountRepository creates a postgres-backed discount repository
func NewDiscountRepository(client postgres.IClient, logger *logger.Logger) discount.Repository {
	return &discountRepository{
		client: client,
		logger: logger,
	}
}

const discountInsertQuery = `
INSERT INTO discounts (
	id, code, active, amount_off, percentage_off, expires_at,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :code, :active, :amount_off, :percentage_off, :expires_at,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *discountRepository) Create(ctx context.Context, d *discount.Discount) error {
	r.logger.Debugw("creating discount",
		"discount_id", d.ID,
		"code", d.Code,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), discountInsertQuery, d); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A discount with code %s already exists", d.Code).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create discount").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *discountRepository) Get(ctx context.Context, id string) (*discount.Discount, error) {
	var d discount.Discount
	query := `
		SELECT * FROM discounts
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &d, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("discount not found").
				WithHintf("Discount with ID %s was not found", id).
				WithReportableDetails(map[string]any{"discount_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get discount").
			Mark(ierr.ErrDatabase)
	}
	return &d, nil
}

const discountUpdateQuery = `
UPDATE discounts SET
	active = :active,
	amount_off = :amount_off,
	percentage_off = :percentage_off,
	expires_at = :expires_at,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *discountRepository) Update(ctx context.Context, d *discount.Discount) error {
	d.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), discountUpdateQuery, d)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update discount").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("discount not found").
			WithHintf("Discount with ID %s was not found", d.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *discountRepository) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	var d discount.Discount
	query := `
		SELECT * FROM discounts
		WHERE code = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &d, query,
		code, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("discount not found").
				WithHintf("Discount with code %s was not found", code).
				WithReportableDetails(map[string]any{"code": code}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get discount by code").
			Mark(ierr.ErrDatabase)
	}
	return &d, nil
}

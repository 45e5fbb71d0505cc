package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/rebill/internal/domain/customer"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type customerRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewCustomerRepository creates a postgres-backed customer repository
func NewCustomerRepository(client postgres.IClient, logger *logger.Logger) customer.Repository {
	return &customerRepository{
		client: client,
		logger: logger,
	}
}

const customerInsertQuery = `
INSERT INTO customers (
	id, external_id, name, email, default_payment_method_id, gateway_customer_id,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :external_id, :name, :email, :default_payment_method_id, :gateway_customer_id,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *customerRepository) Create(ctx context.Context, c *customer.Customer) error {
	r.logger.Debugw("creating customer",
		"customer_id", c.ID,
		"external_id", c.ExternalID,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), customerInsertQuery, c); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHintf("A customer with external ID %s already exists", c.ExternalID).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create customer").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (*customer.Customer, error) {
	var c customer.Customer
	query := `
		SELECT * FROM customers
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &c, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("customer not found").
				WithHintf("Customer with ID %s was not found", id).
				WithReportableDetails(map[string]any{"customer_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

const customerUpdateQuery = `
UPDATE customers SET
	name = :name,
	email = :email,
	default_payment_method_id = :default_payment_method_id,
	gateway_customer_id = :gateway_customer_id,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *customerRepository) Update(ctx context.Context, c *customer.Customer) error {
	c.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), customerUpdateQuery, c)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update customer").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("customer not found").
			WithHintf("Customer with ID %s was not found", c.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *customerRepository) GetByExternalID(ctx context.Context, externalID string) (*customer.Customer, error) {
	var c customer.Customer
	query := `
		SELECT * FROM customers
		WHERE external_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &c, query,
		externalID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("customer not found").
				WithHintf("Customer with external ID %s was not found", externalID).
				WithReportableDetails(map[string]any{"external_id": externalID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get customer by external id").
			Mark(ierr.ErrDatabase)
	}
	return &c, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/rebill/internal/domain/checkout"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type checkoutRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewCheckoutRepository creates a postgres-backed checkout session repository
func NewCheckoutRepository(client postgres.IClient, logger *logger.Logger) checkout.Repository {
	return &checkoutRepository{
		client: client,
		logger: logger,
	}
}

const checkoutInsertQuery = `
INSERT INTO checkout_sessions (
	id, customer_id, plan_name, amount, currency, billing_interval,
	billing_interval_count, session_status, discount_id, subscription_id, expires_at,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :customer_id, :plan_name, :amount, :currency, :billing_interval,
	:billing_interval_count, :session_status, :discount_id, :subscription_id, :expires_at,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *checkoutRepository) Create(ctx context.Context, session *checkout.Session) error {
	r.logger.Debugw("creating checkout session",
		"checkout_session_id", session.ID,
		"customer_id", session.CustomerID,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), checkoutInsertQuery, session); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A checkout session with this identifier already exists").
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create checkout session").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *checkoutRepository) Get(ctx context.Context, id string) (*checkout.Session, error) {
	var session checkout.Session
	query := `
		SELECT * FROM checkout_sessions
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &session, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("checkout session not found").
				WithHintf("Checkout session with ID %s was not found", id).
				WithReportableDetails(map[string]any{"checkout_session_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get checkout session").
			Mark(ierr.ErrDatabase)
	}
	return &session, nil
}

const checkoutUpdateQuery = `
UPDATE checkout_sessions SET
	session_status = :session_status,
	discount_id = :discount_id,
	subscription_id = :subscription_id,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *checkoutRepository) Update(ctx context.Context, session *checkout.Session) error {
	session.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), checkoutUpdateQuery, session)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update checkout session").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("checkout session not found").
			WithHintf("Checkout session with ID %s was not found", session.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

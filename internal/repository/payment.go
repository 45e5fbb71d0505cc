package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/flexprice/rebill/internal/domain/payment"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/logger"
	"github.com/flexprice/rebill/internal/postgres"
	"github.com/flexprice/rebill/internal/types"
	"github.com/jmoiron/sqlx"
)

type paymentRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewPaymentRepository creates a postgres-backed payment repository
func NewPaymentRepository(client postgres.IClient, logger *logger.Logger) payment.Repository {
	return &paymentRepository{
		client: client,
		logger: logger,
	}
}

const paymentInsertQuery = `
INSERT INTO payments (
	id, billing_run_id, idempotency_key, gateway_payment_id, amount, currency,
	payment_status, succeeded_at, failed_at, error_message,
	environment_id, tenant_id, status, created_at, updated_at, created_by, updated_by
) VALUES (
	:id, :billing_run_id, :idempotency_key, :gateway_payment_id, :amount, :currency,
	:payment_status, :succeeded_at, :failed_at, :error_message,
	:environment_id, :tenant_id, :status, :created_at, :updated_at, :created_by, :updated_by
)`

func (r *paymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	r.logger.Debugw("creating payment",
		"payment_id", p.ID,
		"billing_run_id", p.BillingRunID,
		"idempotency_key", p.IdempotencyKey,
	)

	if _, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), paymentInsertQuery, p); err != nil {
		if isUniqueViolation(err) {
			return ierr.WithError(err).
				WithHint("A payment with this idempotency key already exists").
				WithReportableDetails(map[string]any{"idempotency_key": p.IdempotencyKey}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create payment").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	query := `
		SELECT * FROM payments
		WHERE id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, query,
		id, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("Payment with ID %s was not found", id).
				WithReportableDetails(map[string]any{"payment_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

const paymentUpdateQuery = `
UPDATE payments SET
	gateway_payment_id = :gateway_payment_id,
	payment_status = :payment_status,
	succeeded_at = :succeeded_at,
	failed_at = :failed_at,
	error_message = :error_message,
	status = :status,
	updated_at = :updated_at,
	updated_by = :updated_by
WHERE id = :id AND tenant_id = :tenant_id AND environment_id = :environment_id`

func (r *paymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	p.Touch(ctx)

	result, err := sqlx.NamedExecContext(ctx, r.client.Querier(ctx), paymentUpdateQuery, p)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update payment").
			Mark(ierr.ErrDatabase)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ierr.NewError("payment not found").
			WithHintf("Payment with ID %s was not found", p.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// GetByGatewayPaymentID skips tenant scoping: webhook deliveries carry no
// tenant context until the payment row restores it.
func (r *paymentRepository) GetByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*payment.Payment, error) {
	var p payment.Payment
	query := `
		SELECT * FROM payments
		WHERE gateway_payment_id = $1 AND status != $2`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, query,
		gatewayPaymentID, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHintf("No payment found for gateway payment %s", gatewayPaymentID).
				WithReportableDetails(map[string]any{"gateway_payment_id": gatewayPaymentID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment by gateway payment id").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	var p payment.Payment
	query := `
		SELECT * FROM payments
		WHERE idempotency_key = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4`

	err := sqlx.GetContext(ctx, r.client.Querier(ctx), &p, query,
		key, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHint("No payment found for idempotency key").
				WithReportableDetails(map[string]any{"idempotency_key": key}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get payment by idempotency key").
			Mark(ierr.ErrDatabase)
	}
	return &p, nil
}

func (r *paymentRepository) ListByBillingRun(ctx context.Context, billingRunID string) ([]*payment.Payment, error) {
	var payments []*payment.Payment
	query := `
		SELECT * FROM payments
		WHERE billing_run_id = $1 AND tenant_id = $2 AND environment_id = $3 AND status != $4
		ORDER BY created_at ASC`

	err := sqlx.SelectContext(ctx, r.client.Querier(ctx), &payments, query,
		billingRunID, types.GetTenantID(ctx), types.GetEnvironmentID(ctx), types.StatusDeleted)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list payments").
			Mark(ierr.ErrDatabase)
	}
	return payments, nil
}

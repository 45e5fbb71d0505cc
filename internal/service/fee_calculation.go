package service

import (
	"context"

	"github.com/flexprice/rebill/internal/domain/discount"
	"github.com/flexprice/rebill/internal/domain/feecalculation"
	"github.com/flexprice/rebill/internal/domain/subscription"
	ierr "github.com/flexprice/rebill/internal/errors"
	"github.com/flexprice/rebill/internal/types"
	"github.com/shopspring/decimal"
)

// FeeCalculationService prices prospective charges. Calculate is pure;
// SnapshotForPeriod persists the result as an immutable row.
type FeeCalculationService interface {
	// Calculate produces a pricing breakdown without persisting anything.
	// Deterministic: the same inputs always yield the same amounts.
	Calculate(subtotal decimal.Decimal, disc *discount.Discount, taxRatePercent decimal.Decimal, platformFeePercent decimal.Decimal) (*PricingBreakdown, error)

	// SnapshotForPeriod computes and persists a fee calculation for a billing
	// period based on the owning subscription's pricing and bound discount.
	SnapshotForPeriod(ctx context.Context, sub *subscription.Subscription, billingPeriodID string) (*feecalculation.FeeCalculation, error)

	// GetLatestForPeriod returns the most recent snapshot of a period
	GetLatestForPeriod(ctx context.Context, billingPeriodID string) (*feecalculation.FeeCalculation, error)
}

// PricingBreakdown is the pure output of a fee calculation before it is
// persisted as a snapshot
type PricingBreakdown struct {
	Subtotal          decimal.Decimal
	DiscountAmount    decimal.Decimal
	TaxAmount         decimal.Decimal
	PlatformFeeAmount decimal.Decimal
	TotalDue          decimal.Decimal
	DiscountID        *string
}

type feeCalculationService struct {
	ServiceParams
	binder DiscountBinderService
}

// NewFeeCalculationService creates a new fee calculation service
func NewFeeCalculationService(params ServiceParams, binder DiscountBinderService) FeeCalculationService {
	return &feeCalculationService{
		ServiceParams: params,
		binder:        binder,
	}
}

var hundred = decimal.NewFromInt(100)

// Calculate applies the discount before tax; the platform fee is computed on
// the post-discount, pre-tax amount. The total is floored at zero.
func (s *feeCalculationService) Calculate(subtotal decimal.Decimal, disc *discount.Discount, taxRatePercent decimal.Decimal, platformFeePercent decimal.Decimal) (*PricingBreakdown, error) {
	if subtotal.IsNegative() {
		return nil, ierr.NewError("subtotal must not be negative").
			WithHint("Pricing inputs must be non-negative").
			WithReportableDetails(map[string]any{
				"subtotal": subtotal.String(),
			}).
			Mark(ierr.ErrInvalidPricingInput)
	}
	if taxRatePercent.IsNegative() || platformFeePercent.IsNegative() {
		return nil, ierr.NewError("rates must not be negative").
			WithHint("Tax and platform fee rates must be non-negative").
			Mark(ierr.ErrInvalidPricingInput)
	}

	breakdown := &PricingBreakdown{
		Subtotal:       subtotal,
		DiscountAmount: decimal.Zero,
	}

	if disc != nil {
		breakdown.DiscountAmount = disc.AmountFor(subtotal)
		breakdown.DiscountID = &disc.ID
	}

	discounted := subtotal.Sub(breakdown.DiscountAmount)
	if discounted.IsNegative() {
		// AmountFor clamps, so this only happens with a corrupt discount row
		return nil, ierr.NewError("discount exceeds subtotal").
			WithHint("Discount would drive the total below zero").
			Mark(ierr.ErrInvalidPricingInput)
	}

	breakdown.PlatformFeeAmount = discounted.Mul(platformFeePercent).Div(hundred)
	breakdown.TaxAmount = discounted.Mul(taxRatePercent).Div(hundred)

	total := discounted.Add(breakdown.TaxAmount).Add(breakdown.PlatformFeeAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	breakdown.TotalDue = total

	return breakdown, nil
}

func (s *feeCalculationService) SnapshotForPeriod(ctx context.Context, sub *subscription.Subscription, billingPeriodID string) (*feecalculation.FeeCalculation, error) {
	disc, err := s.binder.Resolve(ctx, sub.DiscountID)
	if err != nil {
		return nil, err
	}

	breakdown, err := s.Calculate(
		sub.Amount,
		disc,
		sub.TaxRatePercent,
		decimal.NewFromFloat(s.Config.Billing.PlatformFeePercentage),
	)
	if err != nil {
		return nil, err
	}

	calc := &feecalculation.FeeCalculation{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FEE_CALCULATION),
		BillingPeriodID:   billingPeriodID,
		Subtotal:          breakdown.Subtotal,
		DiscountAmount:    breakdown.DiscountAmount,
		TaxAmount:         breakdown.TaxAmount,
		PlatformFeeAmount: breakdown.PlatformFeeAmount,
		TotalDue:          breakdown.TotalDue,
		DiscountID:        breakdown.DiscountID,
		Currency:          sub.Currency,
		EnvironmentID:     types.GetEnvironmentID(ctx),
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}
	if err := calc.Validate(); err != nil {
		return nil, err
	}
	if err := s.FeeCalcRepo.Create(ctx, calc); err != nil {
		return nil, err
	}

	s.Logger.Infow("created fee calculation",
		"fee_calculation_id", calc.ID,
		"billing_period_id", billingPeriodID,
		"subtotal", calc.Subtotal,
		"discount_amount", calc.DiscountAmount,
		"total_due", calc.TotalDue,
	)
	return calc, nil
}

func (s *feeCalculationService) GetLatestForPeriod(ctx context.Context, billingPeriodID string) (*feecalculation.FeeCalculation, error) {
	return s.FeeCalcRepo.GetLatestByPeriod(ctx, billingPeriodID)
}

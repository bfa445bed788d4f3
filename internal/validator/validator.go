// Package validator applies the business rules that decide whether a
// candidate record enters the analytical pipeline.
//
// Each candidate is classified as accepted or rejected with exactly one
// reason from the fixed taxonomy. The checks run in a fixed order and
// short-circuit on the first failure, so classification is deterministic.
// Validation is pure and order-independent across records: validating a
// batch in any order yields identical results record by record.
//
// Amount reconciliation is deliberately not a rejection. When the stated
// amount disagrees with Quantity×UnitPrice beyond tolerance, the record
// is accepted with the recomputed amount and an Adjustment is kept for
// auditability.
package validator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/pkg/logger"
)

// Config holds configuration for record validation
type Config struct {
	// AmountTolerance is the maximum absolute divergence between the
	// stated amount and Quantity×UnitPrice before reconciliation kicks in
	AmountTolerance decimal.Decimal
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance: decimal.NewFromFloat(0.01),
	}
}

// Validate validates the validator configuration
func (c *Config) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative")
	}
	return nil
}

// Result aggregates the outcome of validating a batch of candidates
type Result struct {
	Accepted    []*models.AcceptedRecord
	Rejected    []*models.RejectedRecord
	Adjustments []*models.Adjustment
}

// RejectedByReason counts rejections per taxonomy reason
func (r *Result) RejectedByReason() map[models.RejectReason]int {
	counts := make(map[models.RejectReason]int)
	for _, rej := range r.Rejected {
		counts[rej.Reason]++
	}
	return counts
}

// Validator classifies candidate records as accepted or rejected
type Validator struct {
	config *Config
	logger logger.Logger
}

// NewValidator creates a new Validator with the given configuration
func NewValidator(config *Config) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator configuration: %w", err)
	}

	return &Validator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("validator"),
	}, nil
}

// Validate classifies a single candidate record. Exactly one of the
// returned values is non-nil; the optional Adjustment is non-nil only
// when the record was accepted with a reconciled amount.
func (v *Validator) Validate(c *models.CandidateRecord) (*models.AcceptedRecord, *models.RejectedRecord, *models.Adjustment) {
	if !models.ValidTransactionID(c.TransactionID) {
		return nil, v.reject(c, models.ReasonInvalidID, fmt.Sprintf("transaction ID %q does not match pattern T<alnum>", c.TransactionID)), nil
	}
	if !models.ValidProductID(c.ProductID) {
		return nil, v.reject(c, models.ReasonInvalidID, fmt.Sprintf("product ID %q does not match pattern P<digits>", c.ProductID)), nil
	}
	if c.Region == "" {
		return nil, v.reject(c, models.ReasonInvalidID, "region is empty"), nil
	}
	if c.CustomerID == "" {
		return nil, v.reject(c, models.ReasonInvalidID, "customer ID is empty"), nil
	}

	if c.Date.IsZero() {
		return nil, v.reject(c, models.ReasonInvalidDate, "date missing or unparseable"), nil
	}

	if !c.Quantity.IsPositive() {
		return nil, v.reject(c, models.ReasonNonPositiveQuantity, fmt.Sprintf("quantity %s is not positive", c.Quantity.String())), nil
	}

	if !c.UnitPrice.IsPositive() {
		return nil, v.reject(c, models.ReasonNonPositiveAmount, fmt.Sprintf("unit price %s is not positive", c.UnitPrice.String())), nil
	}
	if !c.Amount.IsPositive() {
		return nil, v.reject(c, models.ReasonNonPositiveAmount, fmt.Sprintf("amount %s is not positive", c.Amount.String())), nil
	}

	accepted := &models.AcceptedRecord{CandidateRecord: *c}

	recomputed := c.Quantity.Mul(c.UnitPrice)
	if !models.AmountsWithinTolerance(c.Amount, recomputed, v.config.AmountTolerance) {
		adjustment := &models.Adjustment{
			TransactionID:    c.TransactionID,
			StatedAmount:     c.Amount,
			RecomputedAmount: recomputed,
			Difference:       c.Amount.Sub(recomputed),
		}
		accepted.Amount = recomputed

		v.logger.WithFields(logger.Fields{
			"transaction_id": c.TransactionID,
			"stated":         c.Amount.String(),
			"recomputed":     recomputed.String(),
		}).Warn("Reconciled stated amount to quantity × unit price")

		return accepted, nil, adjustment
	}

	return accepted, nil, nil
}

// ValidateAll classifies a batch of candidates, preserving input order
// within each outcome
func (v *Validator) ValidateAll(candidates []*models.CandidateRecord) *Result {
	result := &Result{
		Accepted: make([]*models.AcceptedRecord, 0, len(candidates)),
	}

	for _, c := range candidates {
		accepted, rejected, adjustment := v.Validate(c)
		if rejected != nil {
			result.Rejected = append(result.Rejected, rejected)
			continue
		}
		result.Accepted = append(result.Accepted, accepted)
		if adjustment != nil {
			result.Adjustments = append(result.Adjustments, adjustment)
		}
	}

	v.logger.WithFields(logger.Fields{
		"candidates":  len(candidates),
		"accepted":    len(result.Accepted),
		"rejected":    len(result.Rejected),
		"adjustments": len(result.Adjustments),
	}).Info("Validated candidate records")

	return result
}

func (v *Validator) reject(c *models.CandidateRecord, reason models.RejectReason, detail string) *models.RejectedRecord {
	return &models.RejectedRecord{
		Record: *c,
		Reason: reason,
		Detail: detail,
		Line:   c.Line,
	}
}

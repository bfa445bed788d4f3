package validator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/models"
)

func mustValidator(t *testing.T, config *Config) *Validator {
	t.Helper()
	v, err := NewValidator(config)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	return v
}

func candidate(txnID, region, productID, customerID string, qty, price, amount string) *models.CandidateRecord {
	return &models.CandidateRecord{
		TransactionID: txnID,
		Date:          time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Region:        region,
		ProductID:     productID,
		CustomerID:    customerID,
		Quantity:      decimal.RequireFromString(qty),
		UnitPrice:     decimal.RequireFromString(price),
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestValidateAcceptsCleanRecord(t *testing.T) {
	v := mustValidator(t, nil)

	accepted, rejected, adjustment := v.Validate(candidate("T1001", "West", "P12", "C55", "2", "10.00", "20.00"))
	if rejected != nil {
		t.Fatalf("expected acceptance, got rejection %s: %s", rejected.Reason, rejected.Detail)
	}
	if adjustment != nil {
		t.Errorf("expected no adjustment for consistent amounts, got %+v", adjustment)
	}
	if !accepted.Amount.Equal(decimal.RequireFromString("20.00")) {
		t.Errorf("expected stated amount preserved, got %s", accepted.Amount)
	}
}

func TestValidateRejectionReasons(t *testing.T) {
	v := mustValidator(t, nil)

	tests := []struct {
		name       string
		record     *models.CandidateRecord
		wantReason models.RejectReason
	}{
		{
			name:       "transaction ID without T prefix",
			record:     candidate("X1001", "West", "P12", "C55", "2", "10.00", "20.00"),
			wantReason: models.ReasonInvalidID,
		},
		{
			name:       "product ID with non-digit suffix",
			record:     candidate("T1001", "West", "P12A", "C55", "2", "10.00", "20.00"),
			wantReason: models.ReasonInvalidID,
		},
		{
			name:       "empty region",
			record:     candidate("T1001", "", "P12", "C55", "2", "10.00", "20.00"),
			wantReason: models.ReasonInvalidID,
		},
		{
			name:       "empty customer ID",
			record:     candidate("T1001", "West", "P12", "", "2", "10.00", "20.00"),
			wantReason: models.ReasonInvalidID,
		},
		{
			name:       "zero quantity",
			record:     candidate("T1001", "West", "P12", "C55", "0", "10.00", "20.00"),
			wantReason: models.ReasonNonPositiveQuantity,
		},
		{
			name:       "negative quantity",
			record:     candidate("T1001", "West", "P12", "C55", "-1", "10.00", "20.00"),
			wantReason: models.ReasonNonPositiveQuantity,
		},
		{
			name:       "negative unit price",
			record:     candidate("T1001", "West", "P12", "C55", "2", "-5.00", "20.00"),
			wantReason: models.ReasonNonPositiveAmount,
		},
		{
			name:       "zero amount",
			record:     candidate("T1001", "West", "P12", "C55", "2", "10.00", "0"),
			wantReason: models.ReasonNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, rejected, _ := v.Validate(tt.record)
			if accepted != nil {
				t.Fatal("expected rejection, record was accepted")
			}
			if rejected.Reason != tt.wantReason {
				t.Errorf("expected reason %s, got %s (%s)", tt.wantReason, rejected.Reason, rejected.Detail)
			}
		})
	}
}

func TestValidateCheckOrder(t *testing.T) {
	v := mustValidator(t, nil)

	// Multiple violations: the ID check fires before date and numeric checks.
	rec := candidate("bad", "West", "P12", "C55", "-1", "-5.00", "0")
	rec.Date = time.Time{}

	_, rejected, _ := v.Validate(rec)
	if rejected == nil {
		t.Fatal("expected rejection")
	}
	if rejected.Reason != models.ReasonInvalidID {
		t.Errorf("expected INVALID_ID to win, got %s", rejected.Reason)
	}

	// With IDs fixed, the date check fires before quantity.
	rec.TransactionID = "T1"
	_, rejected, _ = v.Validate(rec)
	if rejected.Reason != models.ReasonInvalidDate {
		t.Errorf("expected INVALID_DATE to win over quantity, got %s", rejected.Reason)
	}
}

func TestValidateMissingDate(t *testing.T) {
	v := mustValidator(t, nil)

	rec := candidate("T1001", "West", "P12", "C55", "2", "10.00", "20.00")
	rec.Date = time.Time{}

	_, rejected, _ := v.Validate(rec)
	if rejected == nil || rejected.Reason != models.ReasonInvalidDate {
		t.Fatalf("expected INVALID_DATE rejection, got %+v", rejected)
	}
}

func TestValidateReconcilesAmountMismatch(t *testing.T) {
	v := mustValidator(t, nil)

	accepted, rejected, adjustment := v.Validate(candidate("T1001", "West", "P12", "C55", "3", "10.00", "35.00"))
	if rejected != nil {
		t.Fatalf("amount mismatch must not reject: %s", rejected.Detail)
	}
	if adjustment == nil {
		t.Fatal("expected an adjustment record")
	}
	if !accepted.Amount.Equal(decimal.RequireFromString("30.00")) {
		t.Errorf("expected recomputed amount 30.00, got %s", accepted.Amount)
	}
	if !adjustment.StatedAmount.Equal(decimal.RequireFromString("35.00")) {
		t.Errorf("expected stated amount 35.00, got %s", adjustment.StatedAmount)
	}
	if !adjustment.Difference.Equal(decimal.RequireFromString("5.00")) {
		t.Errorf("expected difference 5.00, got %s", adjustment.Difference)
	}
}

func TestValidateKeepsStatedAmountWithinTolerance(t *testing.T) {
	v := mustValidator(t, nil)

	// Divergence of exactly 0.01 is within the default tolerance.
	accepted, _, adjustment := v.Validate(candidate("T1001", "West", "P12", "C55", "3", "10.00", "30.01"))
	if adjustment != nil {
		t.Errorf("expected no adjustment within tolerance, got %+v", adjustment)
	}
	if !accepted.Amount.Equal(decimal.RequireFromString("30.01")) {
		t.Errorf("expected stated amount preserved, got %s", accepted.Amount)
	}
}

func TestValidateCustomTolerance(t *testing.T) {
	v := mustValidator(t, &Config{AmountTolerance: decimal.NewFromFloat(1.0)})

	_, _, adjustment := v.Validate(candidate("T1001", "West", "P12", "C55", "3", "10.00", "30.90"))
	if adjustment != nil {
		t.Errorf("expected 0.90 divergence within tolerance 1.0, got adjustment %+v", adjustment)
	}
}

func TestValidateAllPartitionsBatch(t *testing.T) {
	v := mustValidator(t, nil)

	candidates := []*models.CandidateRecord{
		candidate("T1", "West", "P1", "C1", "2", "10.00", "20.00"),
		candidate("T2", "East", "P2", "C2", "-1", "10.00", "10.00"),
		candidate("T3", "West", "P3", "C3", "3", "5.00", "20.00"),
		candidate("bad", "West", "P4", "C4", "1", "1.00", "1.00"),
	}

	result := v.ValidateAll(candidates)
	if len(result.Accepted) != 2 {
		t.Errorf("expected 2 accepted, got %d", len(result.Accepted))
	}
	if len(result.Rejected) != 2 {
		t.Errorf("expected 2 rejected, got %d", len(result.Rejected))
	}
	if len(result.Adjustments) != 1 {
		t.Fatalf("expected 1 adjustment, got %d", len(result.Adjustments))
	}
	if result.Adjustments[0].TransactionID != "T3" {
		t.Errorf("expected adjustment for T3, got %s", result.Adjustments[0].TransactionID)
	}

	counts := result.RejectedByReason()
	if counts[models.ReasonNonPositiveQuantity] != 1 || counts[models.ReasonInvalidID] != 1 {
		t.Errorf("unexpected rejection counts: %v", counts)
	}
}

func TestValidateOrderIndependence(t *testing.T) {
	v := mustValidator(t, nil)

	forward := []*models.CandidateRecord{
		candidate("T1", "West", "P1", "C1", "2", "10.00", "20.00"),
		candidate("T2", "East", "P2", "C2", "0", "10.00", "10.00"),
		candidate("T3", "West", "P3", "C3", "3", "5.00", "99.00"),
	}
	reversed := []*models.CandidateRecord{forward[2], forward[1], forward[0]}

	a := v.ValidateAll(forward)
	b := v.ValidateAll(reversed)

	if len(a.Accepted) != len(b.Accepted) || len(a.Rejected) != len(b.Rejected) || len(a.Adjustments) != len(b.Adjustments) {
		t.Fatalf("batch order changed outcomes: forward=%d/%d/%d reversed=%d/%d/%d",
			len(a.Accepted), len(a.Rejected), len(a.Adjustments),
			len(b.Accepted), len(b.Rejected), len(b.Adjustments))
	}
}

func TestNewValidatorRejectsNegativeTolerance(t *testing.T) {
	_, err := NewValidator(&Config{AmountTolerance: decimal.NewFromFloat(-0.5)})
	if err == nil {
		t.Error("expected error for negative tolerance")
	}
}

package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RejectReason identifies why a record was excluded from the run.
// The set is fixed; each rejected record carries exactly one reason.
type RejectReason string

const (
	// ReasonMalformed marks lines that could not be parsed at all
	ReasonMalformed RejectReason = "MALFORMED"
	// ReasonNonPositiveAmount marks records with a non-positive unit price or amount
	ReasonNonPositiveAmount RejectReason = "NON_POSITIVE_AMOUNT"
	// ReasonNonPositiveQuantity marks records with a non-positive quantity
	ReasonNonPositiveQuantity RejectReason = "NON_POSITIVE_QUANTITY"
	// ReasonInvalidID marks records whose identifiers fail the expected patterns
	ReasonInvalidID RejectReason = "INVALID_ID"
	// ReasonInvalidDate marks records whose date could not be parsed
	ReasonInvalidDate RejectReason = "INVALID_DATE"
)

// String returns the string representation of RejectReason
func (r RejectReason) String() string {
	return string(r)
}

// AllRejectReasons returns the taxonomy in its fixed reporting order
func AllRejectReasons() []RejectReason {
	return []RejectReason{
		ReasonMalformed,
		ReasonNonPositiveAmount,
		ReasonNonPositiveQuantity,
		ReasonInvalidID,
		ReasonInvalidDate,
	}
}

// CandidateRecord is the typed form of one raw feed line, before any
// business-rule validation. It is immutable once built.
type CandidateRecord struct {
	TransactionID string          `json:"transactionID"`
	Date          time.Time       `json:"date"`
	Region        string          `json:"region"`
	ProductID     string          `json:"productID"`
	CustomerID    string          `json:"customerID"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Amount        decimal.Decimal `json:"amount"`

	// Line is the 1-based input line number, kept for the rejection log.
	Line int `json:"line"`
}

// String returns a string representation of the CandidateRecord
func (c *CandidateRecord) String() string {
	return fmt.Sprintf("CandidateRecord{ID: %s, Date: %s, Region: %s, Product: %s, Customer: %s, Qty: %s, Price: %s, Amount: %s}",
		c.TransactionID, c.Date.Format(DateLayout), c.Region, c.ProductID, c.CustomerID,
		c.Quantity.String(), c.UnitPrice.String(), c.Amount.String())
}

// AcceptedRecord is a CandidateRecord that passed validation. Its Amount
// is reconciled: when the stated amount diverged from Quantity×UnitPrice
// beyond tolerance, Amount holds the recomputed value.
type AcceptedRecord struct {
	CandidateRecord
}

// RejectedRecord is a CandidateRecord that failed parsing or validation,
// together with the single reason it was excluded.
type RejectedRecord struct {
	Record CandidateRecord `json:"record"`
	Reason RejectReason    `json:"reason"`
	Detail string          `json:"detail"`
	Line   int             `json:"line"`
}

// String returns a string representation of the RejectedRecord
func (r *RejectedRecord) String() string {
	return fmt.Sprintf("line %d: %s (%s)", r.Line, r.Reason, r.Detail)
}

// Adjustment is the audit entry kept when a stated amount was reconciled
// to Quantity×UnitPrice instead of rejecting the record.
type Adjustment struct {
	TransactionID    string          `json:"transactionID"`
	StatedAmount     decimal.Decimal `json:"statedAmount"`
	RecomputedAmount decimal.Decimal `json:"recomputedAmount"`
	Difference       decimal.Decimal `json:"difference"`
}

// CatalogEntry holds the product metadata supplied by the catalog
// collaborator. Read-only to the pipeline.
type CatalogEntry struct {
	ProductID string          `json:"productID"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Brand     string          `json:"brand"`
	Rating    decimal.Decimal `json:"rating"`
}

// EnrichedRecord pairs an accepted record with its catalog entry.
// Catalog is nil when no match exists; many records may share one entry.
type EnrichedRecord struct {
	*AcceptedRecord
	Catalog *CatalogEntry `json:"catalog,omitempty"`
}

// Matched reports whether the record carries catalog data
func (e *EnrichedRecord) Matched() bool {
	return e.Catalog != nil
}

// DateLayout is the canonical date format used throughout the pipeline
const DateLayout = "2006-01-02"

var (
	transactionIDPattern = regexp.MustCompile(`^T[A-Za-z0-9]+$`)
	productIDPattern     = regexp.MustCompile(`^P[0-9]+$`)
)

// ValidTransactionID checks the expected transaction identifier shape
func ValidTransactionID(id string) bool {
	return transactionIDPattern.MatchString(id)
}

// ValidProductID checks the expected product identifier shape
func ValidProductID(id string) bool {
	return productIDPattern.MatchString(id)
}

// ProductNumericID extracts the numeric tail of a product identifier
// (e.g. "P101" -> 101). The catalog keys its entries by this number.
func ProductNumericID(productID string) (int, bool) {
	if !productIDPattern.MatchString(productID) {
		return 0, false
	}
	n, err := strconv.Atoi(productID[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Utility functions for field parsing and comparison

// ParseDecimalField parses a decimal value from a raw feed field.
// Thousands separators, currency symbols and surrounding whitespace are
// stripped first. An empty field is an error, never zero: a silent zero
// would look legitimate to downstream validation.
func ParseDecimalField(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("numeric field cannot be empty")
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a date from string using the
// formats commonly seen in sales feeds
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		DateLayout,            // "2006-01-02"
		"2006/01/02",          // "2006/01/02"
		"01/02/2006",          // "01/02/2006"
		"02-01-2006",          // "02-01-2006"
		"2006-01-02 15:04:05", // datetime, time part discarded by caller
		time.RFC3339,
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return DateOnly(t), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// DateOnly truncates a timestamp to its calendar date in UTC
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AmountsWithinTolerance compares two decimal amounts with a tolerance
func AmountsWithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// CleanTextField trims surrounding whitespace and stray quoting from a
// raw text field
func CleanTextField(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// Package parsers turns raw sales feed lines into typed candidate records.
//
// The feed is a pipe-delimited text file with one transaction per line:
//
//	TransactionID|Date|Region|ProductID|CustomerID|Quantity|UnitPrice|Amount
//
// Real-world feeds are messy: thousands separators and currency symbols
// inside numeric fields, stray quoting around text fields, inconsistent
// whitespace, blank lines, an optional header row, and non-UTF-8
// encodings. This package absorbs that noise at the boundary so that
// everything downstream works on typed values only.
//
// A line that cannot be parsed (wrong field count, unparseable numeric
// field) becomes a RejectedRecord with reason MALFORMED; values are never
// fabricated. An unparseable date is not a parse failure: the candidate
// carries a zero date and the validator rejects it as INVALID_DATE,
// which keeps the rejection taxonomy precise.
package parsers

import (
	"fmt"
	"strings"

	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/pkg/logger"
)

// fieldCount is the fixed number of pipe-delimited fields per line
const fieldCount = 8

// Config holds configuration for record parsing
type Config struct {
	// Delimiter separates fields within a line
	Delimiter rune
	// HasHeader indicates the feed may start with a header row
	HasHeader bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Delimiter: '|',
		HasHeader: true,
	}
}

// Validate validates the parser configuration
func (c *Config) Validate() error {
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}
	return nil
}

// RecordParser converts raw feed lines into candidate records
type RecordParser struct {
	config *Config
	logger logger.Logger
}

// NewRecordParser creates a new RecordParser with the given configuration
func NewRecordParser(config *Config) (*RecordParser, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parser configuration: %w", err)
	}

	return &RecordParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("record_parser"),
	}, nil
}

// ParseLine converts one raw line into a CandidateRecord. It is a pure
// function of its input: no state is carried between lines. On failure
// it returns a RejectedRecord with reason MALFORMED instead.
func (p *RecordParser) ParseLine(line string, lineNo int) (*models.CandidateRecord, *models.RejectedRecord) {
	fields := strings.Split(line, string(p.config.Delimiter))
	if len(fields) != fieldCount {
		return nil, p.reject(lineNo, fmt.Sprintf("expected %d fields, got %d", fieldCount, len(fields)))
	}

	record := &models.CandidateRecord{
		TransactionID: models.CleanTextField(fields[0]),
		Region:        models.CleanTextField(fields[2]),
		ProductID:     models.CleanTextField(fields[3]),
		CustomerID:    models.CleanTextField(fields[4]),
		Line:          lineNo,
	}

	// Date failures are deferred to the validator so the record keeps
	// its INVALID_DATE reason rather than collapsing into MALFORMED.
	if date, err := models.ParseDateWithFormats(fields[1]); err == nil {
		record.Date = date
	}

	quantity, err := models.ParseDecimalField(fields[5])
	if err != nil {
		return nil, p.reject(lineNo, fmt.Sprintf("quantity: %v", err))
	}
	record.Quantity = quantity

	unitPrice, err := models.ParseDecimalField(fields[6])
	if err != nil {
		return nil, p.reject(lineNo, fmt.Sprintf("unit price: %v", err))
	}
	record.UnitPrice = unitPrice

	amount, err := models.ParseDecimalField(fields[7])
	if err != nil {
		return nil, p.reject(lineNo, fmt.Sprintf("amount: %v", err))
	}
	record.Amount = amount

	return record, nil
}

// ParseLines parses a batch of raw lines, splitting them into candidate
// records and malformed rejections. Line numbers are 1-based and refer
// to positions within the supplied slice.
func (p *RecordParser) ParseLines(lines []string) ([]*models.CandidateRecord, []*models.RejectedRecord) {
	candidates := make([]*models.CandidateRecord, 0, len(lines))
	var rejected []*models.RejectedRecord

	for i, line := range lines {
		lineNo := i + 1
		if strings.TrimSpace(line) == "" {
			continue
		}
		if p.config.HasHeader && i == 0 && isHeaderLine(line) {
			p.logger.WithField("line", line).Debug("Skipping header line")
			continue
		}

		candidate, reject := p.ParseLine(line, lineNo)
		if reject != nil {
			rejected = append(rejected, reject)
			continue
		}
		candidates = append(candidates, candidate)
	}

	p.logger.WithFields(logger.Fields{
		"total_lines": len(lines),
		"candidates":  len(candidates),
		"malformed":   len(rejected),
	}).Debug("Parsed feed lines")

	return candidates, rejected
}

func (p *RecordParser) reject(lineNo int, detail string) *models.RejectedRecord {
	return &models.RejectedRecord{
		Reason: models.ReasonMalformed,
		Detail: detail,
		Line:   lineNo,
	}
}

// isHeaderLine detects the optional feed header row
func isHeaderLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "TransactionID")
}

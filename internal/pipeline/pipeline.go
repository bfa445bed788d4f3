// Package pipeline orchestrates a full analysis run: read the feed,
// parse and validate records, apply filters, aggregate metrics, enrich
// against the catalog, and compose the report.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/analytics"
	"github.com/salespipe/salespipe/internal/enrichment"
	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/internal/parsers"
	"github.com/salespipe/salespipe/internal/reporter"
	"github.com/salespipe/salespipe/internal/validator"
	"github.com/salespipe/salespipe/pkg/errors"
	"github.com/salespipe/salespipe/pkg/logger"
)

// Request describes a single analysis run
type Request struct {
	// InputPath is the sales feed file to analyze
	InputPath string
	// RegionFilter keeps only records from this region; empty keeps all
	RegionFilter string
	// MinAmount and MaxAmount bound the accepted amount, inclusive;
	// nil means unbounded
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
}

// Validate validates the request
func (r *Request) Validate() error {
	if r.InputPath == "" {
		return fmt.Errorf("input path is required")
	}
	if r.MinAmount != nil && r.MaxAmount != nil && r.MinAmount.GreaterThan(*r.MaxAmount) {
		return fmt.Errorf("min amount %s exceeds max amount %s", r.MinAmount, r.MaxAmount)
	}
	return nil
}

// RunSummary reports the outcome of a run to the caller
type RunSummary struct {
	CandidateCount   int
	AcceptedCount    int
	FilteredCount    int
	RejectedByReason map[models.RejectReason]int
	AdjustmentCount  int
	EnrichedCount    int
	UnmatchedCount   int
	Duration         time.Duration

	// Enriched carries the joined records for callers that persist or
	// post-process them; nil when enrichment is disabled
	Enriched []*models.EnrichedRecord
}

// Service wires the pipeline stages together
type Service struct {
	feedReader *parsers.FeedReader
	parser     *parsers.RecordParser
	validator  *validator.Validator
	merger     *enrichment.Merger
	composer   *reporter.Composer
	logger     logger.Logger
}

// NewService creates a pipeline service. The merger may be nil, which
// disables enrichment for the run.
func NewService(parser *parsers.RecordParser, v *validator.Validator, merger *enrichment.Merger, composer *reporter.Composer) (*Service, error) {
	if parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if v == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if composer == nil {
		return nil, fmt.Errorf("composer is required")
	}

	return &Service{
		feedReader: parsers.NewFeedReader(),
		parser:     parser,
		validator:  v,
		merger:     merger,
		composer:   composer,
		logger:     logger.GetGlobalLogger().WithComponent("pipeline"),
	}, nil
}

// Run executes the pipeline for a request and writes the report to w
func (s *Service) Run(ctx context.Context, request *Request, w io.Writer) (*RunSummary, error) {
	start := time.Now()

	if err := request.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "request", request.InputPath, err)
	}

	lines, err := s.feedReader.ReadLines(request.InputPath)
	if err != nil {
		return nil, err
	}

	candidates, parseRejected := s.parser.ParseLines(lines)

	result := s.validator.ValidateAll(candidates)
	rejected := append(parseRejected, result.Rejected...)

	if len(result.Accepted) == 0 {
		return nil, errors.ValidationError(errors.CodeNoValidRecords, "input", request.InputPath,
			fmt.Errorf("no records survived validation (%d rejected)", len(rejected)))
	}

	accepted := s.applyFilters(request, result.Accepted)
	filteredOut := len(result.Accepted) - len(accepted)

	s.logger.WithFields(logger.Fields{
		"input":        request.InputPath,
		"candidates":   len(candidates),
		"accepted":     len(result.Accepted),
		"filtered_out": filteredOut,
		"rejected":     len(rejected),
	}).Info("Feed processed")

	metrics := analytics.Build(accepted)

	var enriched []*models.EnrichedRecord
	var coverage *enrichment.CoverageSummary
	if s.merger != nil {
		enriched, coverage = s.merger.Merge(ctx, accepted)
	}

	input := &reporter.Input{
		Metrics:     metrics,
		Coverage:    coverage,
		Rejected:    rejected,
		Adjustments: result.Adjustments,
	}
	if err := s.composer.Compose(input, w); err != nil {
		return nil, err
	}

	summary := &RunSummary{
		CandidateCount:   len(candidates) + len(parseRejected),
		AcceptedCount:    len(accepted),
		FilteredCount:    filteredOut,
		RejectedByReason: make(map[models.RejectReason]int),
		AdjustmentCount:  len(result.Adjustments),
		Duration:         time.Since(start),
	}
	for _, rej := range rejected {
		summary.RejectedByReason[rej.Reason]++
	}
	if coverage != nil {
		summary.EnrichedCount = coverage.MatchedRecords
		summary.UnmatchedCount = coverage.UnmatchedRecords
		summary.Enriched = enriched
	}

	return summary, nil
}

// applyFilters keeps accepted records matching the request's region
// and amount bounds. Filters run after validation, so a filtered-out
// record is never a rejection.
func (s *Service) applyFilters(request *Request, records []*models.AcceptedRecord) []*models.AcceptedRecord {
	if request.RegionFilter == "" && request.MinAmount == nil && request.MaxAmount == nil {
		return records
	}

	kept := make([]*models.AcceptedRecord, 0, len(records))
	for _, rec := range records {
		if request.RegionFilter != "" && rec.Region != request.RegionFilter {
			continue
		}
		if request.MinAmount != nil && rec.Amount.LessThan(*request.MinAmount) {
			continue
		}
		if request.MaxAmount != nil && rec.Amount.GreaterThan(*request.MaxAmount) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

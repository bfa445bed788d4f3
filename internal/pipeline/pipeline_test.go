package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/catalog"
	"github.com/salespipe/salespipe/internal/enrichment"
	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/internal/parsers"
	"github.com/salespipe/salespipe/internal/reporter"
	"github.com/salespipe/salespipe/internal/validator"
	"github.com/salespipe/salespipe/pkg/errors"
)

func writeFeed(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.txt")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write feed: %v", err)
	}
	return path
}

func newTestService(t *testing.T, merger *enrichment.Merger) *Service {
	t.Helper()
	parser, err := parsers.NewRecordParser(nil)
	if err != nil {
		t.Fatalf("NewRecordParser failed: %v", err)
	}
	v, err := validator.NewValidator(nil)
	if err != nil {
		t.Fatalf("NewValidator failed: %v", err)
	}
	composer, err := reporter.NewComposer(nil)
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}
	service, err := NewService(parser, v, merger, composer)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return service
}

func staticMerger(t *testing.T, entries []*models.CatalogEntry) *enrichment.Merger {
	t.Helper()
	merger, err := enrichment.NewMerger(catalog.NewStaticProvider(entries), nil)
	if err != nil {
		t.Fatalf("NewMerger failed: %v", err)
	}
	return merger
}

func TestRunEndToEnd(t *testing.T) {
	path := writeFeed(t,
		"TransactionID|Date|Region|ProductID|CustomerID|Quantity|UnitPrice|Amount",
		"T1|2024-01-01|West|P1|C1|2|10.00|20.00",
		"T2|2024-01-02|East|P2|C2|1|-5.00|5.00",
		"T3|2024-01-02|West|P9|C1|3|10.00|35.00",
		"broken line",
	)

	merger := staticMerger(t, []*models.CatalogEntry{
		{ProductID: "P1", Title: "Widget"},
	})
	service := newTestService(t, merger)

	var buf bytes.Buffer
	summary, err := service.Run(context.Background(), &Request{InputPath: path}, &buf)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.AcceptedCount != 2 {
		t.Errorf("expected 2 accepted, got %d", summary.AcceptedCount)
	}
	if summary.RejectedByReason[models.ReasonNonPositiveAmount] != 1 {
		t.Errorf("expected 1 NON_POSITIVE_AMOUNT rejection, got %v", summary.RejectedByReason)
	}
	if summary.RejectedByReason[models.ReasonMalformed] != 1 {
		t.Errorf("expected 1 MALFORMED rejection, got %v", summary.RejectedByReason)
	}
	if summary.AdjustmentCount != 1 {
		t.Errorf("expected 1 adjustment (T3 35.00 vs 30.00), got %d", summary.AdjustmentCount)
	}
	if summary.EnrichedCount != 1 || summary.UnmatchedCount != 1 {
		t.Errorf("expected 1 enriched / 1 unmatched, got %d/%d", summary.EnrichedCount, summary.UnmatchedCount)
	}
	if len(summary.Enriched) != 2 {
		t.Fatalf("expected joined records on the summary, got %d", len(summary.Enriched))
	}
	if !summary.Enriched[0].Matched() || summary.Enriched[1].Matched() {
		t.Errorf("expected T1 matched and T3 unmatched, got %v/%v",
			summary.Enriched[0].Matched(), summary.Enriched[1].Matched())
	}

	report := buf.String()
	for _, want := range []string{
		"Records Accepted:  2",
		// T3 reconciled to 30.00, so total is 20.00 + 30.00.
		"Total Revenue:       50.00",
		"Peak Day: 2024-01-02",
		"P9",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestRunRegionFilter(t *testing.T) {
	path := writeFeed(t,
		"T1|2024-01-01|West|P1|C1|2|10.00|20.00",
		"T2|2024-01-01|East|P2|C2|1|10.00|10.00",
		"T3|2024-01-02|West|P1|C3|1|10.00|10.00",
	)

	service := newTestService(t, nil)

	var buf bytes.Buffer
	summary, err := service.Run(context.Background(), &Request{InputPath: path, RegionFilter: "West"}, &buf)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.AcceptedCount != 2 {
		t.Errorf("expected 2 records after region filter, got %d", summary.AcceptedCount)
	}
	if summary.FilteredCount != 1 {
		t.Errorf("expected 1 filtered out, got %d", summary.FilteredCount)
	}
	if summary.Enriched != nil {
		t.Error("expected no joined records when enrichment is disabled")
	}
	if strings.Contains(buf.String(), "East") {
		t.Error("filtered region leaked into report")
	}
	if !strings.Contains(buf.String(), "Total Revenue:       30.00") {
		t.Error("expected revenue from West records only")
	}
}

func TestRunAmountFilter(t *testing.T) {
	path := writeFeed(t,
		"T1|2024-01-01|West|P1|C1|1|5.00|5.00",
		"T2|2024-01-01|West|P1|C2|1|50.00|50.00",
		"T3|2024-01-01|West|P1|C3|1|500.00|500.00",
	)

	service := newTestService(t, nil)

	min := decimal.RequireFromString("10.00")
	max := decimal.RequireFromString("100.00")
	var buf bytes.Buffer
	summary, err := service.Run(context.Background(), &Request{
		InputPath: path,
		MinAmount: &min,
		MaxAmount: &max,
	}, &buf)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.AcceptedCount != 1 {
		t.Errorf("expected 1 record within amount bounds, got %d", summary.AcceptedCount)
	}
	if !strings.Contains(buf.String(), "Total Revenue:       50.00") {
		t.Error("expected only the in-range record aggregated")
	}
}

func TestRunNoValidRecords(t *testing.T) {
	path := writeFeed(t,
		"T1|2024-01-01|West|P1|C1|0|10.00|0",
		"garbage",
	)

	service := newTestService(t, nil)

	var buf bytes.Buffer
	_, err := service.Run(context.Background(), &Request{InputPath: path}, &buf)
	if err == nil {
		t.Fatal("expected error when no records survive validation")
	}
	pErr, ok := errors.AsPipelineError(err)
	if !ok {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if pErr.Code != errors.CodeNoValidRecords {
		t.Errorf("expected no_valid_records code, got %s", pErr.Code)
	}
	if buf.Len() != 0 {
		t.Error("expected no report output on fatal validation failure")
	}
}

func TestRunMissingInput(t *testing.T) {
	service := newTestService(t, nil)

	var buf bytes.Buffer
	_, err := service.Run(context.Background(), &Request{InputPath: "/nonexistent/sales.txt"}, &buf)
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
	pErr, ok := errors.AsPipelineError(err)
	if !ok {
		t.Fatalf("expected PipelineError, got %T", err)
	}
	if pErr.Category != errors.CategoryFile {
		t.Errorf("expected file category, got %s", pErr.Category)
	}
}

func TestRunInvalidRequest(t *testing.T) {
	service := newTestService(t, nil)

	var buf bytes.Buffer
	_, err := service.Run(context.Background(), &Request{}, &buf)
	if err == nil {
		t.Error("expected error for empty input path")
	}

	min := decimal.RequireFromString("100")
	max := decimal.RequireFromString("10")
	_, err = service.Run(context.Background(), &Request{InputPath: "x", MinAmount: &min, MaxAmount: &max}, &buf)
	if err == nil {
		t.Error("expected error for inverted amount bounds")
	}
}

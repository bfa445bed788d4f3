// Package reporter composes the final analysis report. Output is
// byte-deterministic: fixed section order, stable sorts everywhere,
// and no timestamps, so the same inputs always produce the same bytes.
package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/analytics"
	"github.com/salespipe/salespipe/internal/enrichment"
	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/pkg/errors"
	"github.com/salespipe/salespipe/pkg/logger"
)

// Config holds configuration for report composition
type Config struct {
	// TopN is the number of entries in the top products and top
	// customers tables
	TopN int
	// LowUnitsThreshold marks products selling fewer units than this
	// as low performers; zero disables the listing
	LowUnitsThreshold int
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TopN:              5,
		LowUnitsThreshold: 5,
	}
}

// Validate validates the report configuration
func (c *Config) Validate() error {
	if c.TopN < 1 {
		return fmt.Errorf("top N must be at least 1")
	}
	if c.LowUnitsThreshold < 0 {
		return fmt.Errorf("low units threshold cannot be negative")
	}
	return nil
}

// Input bundles everything the composer renders
type Input struct {
	Metrics     *analytics.MetricsSummary
	Coverage    *enrichment.CoverageSummary
	Rejected    []*models.RejectedRecord
	Adjustments []*models.Adjustment
}

// Composer renders analysis results as a text report
type Composer struct {
	config *Config
	logger logger.Logger
}

// NewComposer creates a Composer with the given configuration
func NewComposer(config *Config) (*Composer, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &Composer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// Compose writes the full report to w. Sections appear in a fixed
// order; empty inputs render as empty tables or "(none)" lines.
func (c *Composer) Compose(input *Input, w io.Writer) error {
	cw := &countingWriter{w: w}

	fmt.Fprintf(cw, "SALES ANALYSIS REPORT\n\n")

	c.printExecutiveSummary(input, cw)
	c.printOverallMetrics(input.Metrics, cw)
	c.printRegionalPerformance(input.Metrics, cw)
	c.printTopPerformers(input.Metrics, cw)
	c.printDailyTrends(input.Metrics, cw)
	c.printEnrichmentOverview(input.Coverage, cw)

	if cw.err != nil {
		return errors.ReportError(errors.CodeReportWriteFailed, "report", cw.err)
	}

	c.logger.WithField("bytes", cw.n).Info("Composed report")
	return nil
}

func (c *Composer) printExecutiveSummary(input *Input, w io.Writer) {
	fmt.Fprintf(w, "=== EXECUTIVE SUMMARY ===\n")
	fmt.Fprintf(w, "Records Accepted:  %d\n", input.Metrics.TransactionCount)
	fmt.Fprintf(w, "Records Rejected:  %d\n", len(input.Rejected))

	counts := make(map[models.RejectReason]int)
	for _, rej := range input.Rejected {
		counts[rej.Reason]++
	}
	for _, reason := range models.AllRejectReasons() {
		if n := counts[reason]; n > 0 {
			fmt.Fprintf(w, "  %-22s %d\n", string(reason)+":", n)
		}
	}

	fmt.Fprintf(w, "Amounts Reconciled: %d\n", len(input.Adjustments))
	for _, adj := range input.Adjustments {
		fmt.Fprintf(w, "  %s: stated %s, recomputed %s (diff %s)\n",
			adj.TransactionID,
			adj.StatedAmount.StringFixed(2),
			adj.RecomputedAmount.StringFixed(2),
			adj.Difference.StringFixed(2))
	}
	fmt.Fprintf(w, "\n")
}

func (c *Composer) printOverallMetrics(metrics *analytics.MetricsSummary, w io.Writer) {
	fmt.Fprintf(w, "=== OVERALL METRICS ===\n")
	fmt.Fprintf(w, "Total Revenue:       %s\n", metrics.TotalRevenue.StringFixed(2))
	fmt.Fprintf(w, "Transaction Count:   %d\n", metrics.TransactionCount)
	fmt.Fprintf(w, "Average Order Value: %s\n", metrics.AverageOrderValue.StringFixed(2))
	if !metrics.FirstDate.IsZero() {
		fmt.Fprintf(w, "Date Range:          %s to %s\n",
			metrics.FirstDate.Format(models.DateLayout),
			metrics.LastDate.Format(models.DateLayout))
	}
	fmt.Fprintf(w, "\n")
}

func (c *Composer) printRegionalPerformance(metrics *analytics.MetricsSummary, w io.Writer) {
	fmt.Fprintf(w, "=== REGIONAL PERFORMANCE ===\n")
	fmt.Fprintf(w, "%-15s %14s %8s %8s %14s\n", "Region", "Revenue", "Share", "Txns", "Avg Value")
	for _, name := range metrics.RegionNames() {
		region := metrics.Regions[name]
		avg := region.Revenue.Div(decimal.NewFromInt(int64(region.Count)))
		fmt.Fprintf(w, "%-15s %14s %7s%% %8d %14s\n",
			name,
			region.Revenue.StringFixed(2),
			region.Share.Mul(hundred).StringFixed(1),
			region.Count,
			avg.StringFixed(2))
	}
	fmt.Fprintf(w, "\n")
}

func (c *Composer) printTopPerformers(metrics *analytics.MetricsSummary, w io.Writer) {
	fmt.Fprintf(w, "=== TOP PRODUCTS ===\n")
	products := metrics.TopProducts(c.config.TopN)
	if len(products) == 0 {
		fmt.Fprintf(w, "(none)\n")
	} else {
		fmt.Fprintf(w, "%4s %-12s %10s %14s\n", "Rank", "Product", "Units", "Revenue")
		for _, p := range products {
			fmt.Fprintf(w, "%4d %-12s %10s %14s\n",
				p.Rank, p.ProductID, p.UnitsSold.String(), p.Revenue.StringFixed(2))
		}
	}
	if c.config.LowUnitsThreshold > 0 {
		low := metrics.LowPerformers(decimal.NewFromInt(int64(c.config.LowUnitsThreshold)))
		fmt.Fprintf(w, "Low Performers (under %d units): ", c.config.LowUnitsThreshold)
		if len(low) == 0 {
			fmt.Fprintf(w, "(none)\n")
		} else {
			ids := make([]string, 0, len(low))
			for _, p := range low {
				ids = append(ids, p.ProductID)
			}
			fmt.Fprintf(w, "%s\n", strings.Join(ids, ", "))
		}
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "=== TOP CUSTOMERS ===\n")
	customers := metrics.TopCustomers(c.config.TopN)
	if len(customers) == 0 {
		fmt.Fprintf(w, "(none)\n")
	} else {
		fmt.Fprintf(w, "%4s %-12s %10s %14s\n", "Rank", "Customer", "Orders", "Revenue")
		for i, cust := range customers {
			fmt.Fprintf(w, "%4d %-12s %10d %14s\n",
				i+1, cust.CustomerID, cust.PurchaseCount, cust.Revenue.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "\n")
}

func (c *Composer) printDailyTrends(metrics *analytics.MetricsSummary, w io.Writer) {
	fmt.Fprintf(w, "=== DAILY TRENDS ===\n")
	fmt.Fprintf(w, "%-12s %14s %8s %10s\n", "Date", "Revenue", "Txns", "Customers")
	for _, d := range metrics.Daily {
		fmt.Fprintf(w, "%-12s %14s %8d %10d\n",
			d.Date.Format(models.DateLayout), d.Revenue.StringFixed(2), d.Count, d.UniqueCustomers)
	}
	if !metrics.PeakDay.IsZero() {
		fmt.Fprintf(w, "Peak Day: %s\n", metrics.PeakDay.Format(models.DateLayout))
	}
	fmt.Fprintf(w, "\n")
}

func (c *Composer) printEnrichmentOverview(coverage *enrichment.CoverageSummary, w io.Writer) {
	fmt.Fprintf(w, "=== ENRICHMENT OVERVIEW ===\n")
	if coverage == nil {
		fmt.Fprintf(w, "Enrichment disabled\n")
		return
	}
	fmt.Fprintf(w, "Matched Records:    %d\n", coverage.MatchedRecords)
	fmt.Fprintf(w, "Unmatched Records:  %d\n", coverage.UnmatchedRecords)
	fmt.Fprintf(w, "Matched Products:   %d\n", coverage.MatchedProducts)
	fmt.Fprintf(w, "Unmatched Products: %d\n", coverage.UnmatchedProducts)
	fmt.Fprintf(w, "Match Rate:         %.1f%%\n", coverage.MatchRate()*100)
	if len(coverage.UnmatchedProductIDs) == 0 {
		fmt.Fprintf(w, "Unmatched IDs:      (none)\n")
	} else {
		fmt.Fprintf(w, "Unmatched IDs:\n")
		for _, id := range coverage.UnmatchedProductIDs {
			fmt.Fprintf(w, "  %s\n", id)
		}
	}
}

var hundred = decimal.NewFromInt(100)

// countingWriter tracks bytes written and the first write error so the
// section printers can stay error-free
type countingWriter struct {
	w   io.Writer
	n   int
	err error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.err != nil {
		return len(p), nil
	}
	n, err := cw.w.Write(p)
	cw.n += n
	if err != nil {
		cw.err = err
	}
	return len(p), nil
}

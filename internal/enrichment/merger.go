// Package enrichment left-joins accepted records against a product
// catalog. Enrichment is best-effort: a record whose product has no
// catalog entry, or whose lookup fails, stays in the output unmatched.
package enrichment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/salespipe/salespipe/internal/models"
	"github.com/salespipe/salespipe/pkg/logger"
)

// CatalogProvider looks up catalog entries by feed product ID.
// Implementations return an error (catalog.ErrNotFound or otherwise)
// when no entry is available; the merger treats any error as unmatched.
type CatalogProvider interface {
	Get(ctx context.Context, productID string) (*models.CatalogEntry, error)
}

// Config holds configuration for the enrichment merger
type Config struct {
	// MaxConcurrency bounds parallel catalog lookups; values below 1
	// are rejected
	MaxConcurrency int
	// LookupTimeout bounds each individual lookup; zero disables the
	// per-lookup deadline
	LookupTimeout time.Duration
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 4,
		LookupTimeout:  5 * time.Second,
	}
}

// Validate validates the merger configuration
func (c *Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1")
	}
	if c.LookupTimeout < 0 {
		return fmt.Errorf("lookup timeout cannot be negative")
	}
	return nil
}

// CoverageSummary reports how much of the input the catalog covered
type CoverageSummary struct {
	// MatchedProducts and UnmatchedProducts count distinct product IDs
	MatchedProducts   int
	UnmatchedProducts int
	// MatchedRecords and UnmatchedRecords count individual records
	MatchedRecords   int
	UnmatchedRecords int
	// UnmatchedProductIDs lists the distinct unmatched IDs, sorted
	UnmatchedProductIDs []string
}

// MatchRate returns matched records as a fraction of all records,
// or 0 when there are none
func (c *CoverageSummary) MatchRate() float64 {
	total := c.MatchedRecords + c.UnmatchedRecords
	if total == 0 {
		return 0
	}
	return float64(c.MatchedRecords) / float64(total)
}

// Merger joins accepted records with catalog entries
type Merger struct {
	config   *Config
	provider CatalogProvider
	logger   logger.Logger
}

// NewMerger creates a Merger over the given provider
func NewMerger(provider CatalogProvider, config *Config) (*Merger, error) {
	if provider == nil {
		return nil, fmt.Errorf("catalog provider is required")
	}
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid enrichment configuration: %w", err)
	}

	return &Merger{
		config:   config,
		provider: provider,
		logger:   logger.GetGlobalLogger().WithComponent("enrichment"),
	}, nil
}

// Merge left-joins records with the catalog. Every input record appears
// in the output exactly once, in input order. Each distinct product ID
// is looked up at most once per call; lookups run concurrently up to
// the configured limit.
func (m *Merger) Merge(ctx context.Context, records []*models.AcceptedRecord) ([]*models.EnrichedRecord, *CoverageSummary) {
	distinct := make([]string, 0)
	seen := make(map[string]struct{})
	for _, rec := range records {
		if _, ok := seen[rec.ProductID]; !ok {
			seen[rec.ProductID] = struct{}{}
			distinct = append(distinct, rec.ProductID)
		}
	}

	entries := m.lookupAll(ctx, distinct)

	enriched := make([]*models.EnrichedRecord, 0, len(records))
	coverage := &CoverageSummary{}
	unmatchedIDs := make(map[string]struct{})
	for _, rec := range records {
		entry := entries[rec.ProductID]
		enriched = append(enriched, &models.EnrichedRecord{
			AcceptedRecord: rec,
			Catalog:        entry,
		})
		if entry != nil {
			coverage.MatchedRecords++
		} else {
			coverage.UnmatchedRecords++
			unmatchedIDs[rec.ProductID] = struct{}{}
		}
	}

	coverage.UnmatchedProducts = len(unmatchedIDs)
	coverage.MatchedProducts = len(distinct) - len(unmatchedIDs)
	coverage.UnmatchedProductIDs = make([]string, 0, len(unmatchedIDs))
	for id := range unmatchedIDs {
		coverage.UnmatchedProductIDs = append(coverage.UnmatchedProductIDs, id)
	}
	sort.Strings(coverage.UnmatchedProductIDs)

	m.logger.WithFields(logger.Fields{
		"records":            len(records),
		"distinct_products":  len(distinct),
		"matched_products":   coverage.MatchedProducts,
		"unmatched_products": coverage.UnmatchedProducts,
	}).Info("Merged records with catalog")

	return enriched, coverage
}

// lookupAll resolves each distinct product ID at most once. Results go
// into a write-once map; a nil entry means unmatched.
func (m *Merger) lookupAll(ctx context.Context, productIDs []string) map[string]*models.CatalogEntry {
	results := make(map[string]*models.CatalogEntry, len(productIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.MaxConcurrency)

	for _, productID := range productIDs {
		productID := productID
		g.Go(func() error {
			entry := m.lookup(gctx, productID)
			mu.Lock()
			results[productID] = entry
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; lookup failures become unmatched.
	g.Wait()

	return results
}

func (m *Merger) lookup(ctx context.Context, productID string) *models.CatalogEntry {
	if ctx.Err() != nil {
		return nil
	}

	if m.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.LookupTimeout)
		defer cancel()
	}

	entry, err := m.provider.Get(ctx, productID)
	if err != nil {
		m.logger.WithFields(logger.Fields{
			"product_id": productID,
		}).WithError(err).Debug("Catalog lookup missed")
		return nil
	}
	return entry
}

// Package catalog provides product catalog lookups for enrichment.
// Lookups are keyed by feed ProductID (P<digits>); the HTTP client
// maps the numeric part onto upstream catalog IDs.
package catalog

import (
	"context"
	stderrors "errors"
	"sort"

	"github.com/salespipe/salespipe/internal/models"
)

// ErrNotFound is returned when a product ID has no catalog entry
var ErrNotFound = stderrors.New("product not found in catalog")

// StaticProvider serves lookups from an in-memory set of entries.
// Useful for tests and for pre-loaded catalog snapshots.
type StaticProvider struct {
	entries map[string]*models.CatalogEntry
}

// NewStaticProvider creates a provider over the given entries
func NewStaticProvider(entries []*models.CatalogEntry) *StaticProvider {
	m := make(map[string]*models.CatalogEntry, len(entries))
	for _, e := range entries {
		m[e.ProductID] = e
	}
	return &StaticProvider{entries: m}
}

// Get returns the entry for productID, or ErrNotFound
func (p *StaticProvider) Get(_ context.Context, productID string) (*models.CatalogEntry, error) {
	entry, ok := p.entries[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return entry, nil
}

// ProductIDs returns the known product IDs in sorted order
func (p *StaticProvider) ProductIDs() []string {
	ids := make([]string, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Package analytics folds accepted sales records into a metrics
// summary: overall totals, per-region and per-product breakdowns,
// customer activity, and a daily trend with unique-customer counts.
//
// The fold is commutative and associative per key, so records can be
// accumulated in any order, or in partitions merged afterwards, and
// produce the same summary.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/salespipe/salespipe/internal/models"
)

// RegionMetrics holds per-region aggregates
type RegionMetrics struct {
	Revenue decimal.Decimal
	// Share is the region's fraction of total revenue, in [0,1]
	Share decimal.Decimal
	Count int
}

// ProductMetrics holds per-product aggregates
type ProductMetrics struct {
	ProductID string
	Revenue   decimal.Decimal
	UnitsSold decimal.Decimal
	// Rank orders products by revenue descending, ties broken by
	// ascending ProductID; the top product has rank 1
	Rank int
}

// CustomerMetrics holds per-customer aggregates
type CustomerMetrics struct {
	CustomerID    string
	Revenue       decimal.Decimal
	PurchaseCount int
}

// DailyMetrics holds aggregates for a single calendar day
type DailyMetrics struct {
	Date            time.Time
	Revenue         decimal.Decimal
	Count           int
	UniqueCustomers int
}

// MetricsSummary is the materialized view of an accumulator. It is
// immutable once built.
type MetricsSummary struct {
	TotalRevenue      decimal.Decimal
	TransactionCount  int
	AverageOrderValue decimal.Decimal
	FirstDate         time.Time
	LastDate          time.Time
	Regions           map[string]*RegionMetrics
	Products          map[string]*ProductMetrics
	Customers         map[string]*CustomerMetrics
	Daily             []*DailyMetrics
	// PeakDay is the earliest date with the maximum daily revenue;
	// zero when there are no records
	PeakDay time.Time
}

// TopProducts returns up to n products ordered by revenue descending,
// ties broken by ascending ProductID
func (m *MetricsSummary) TopProducts(n int) []*ProductMetrics {
	ranked := make([]*ProductMetrics, 0, len(m.Products))
	for _, p := range m.Products {
		ranked = append(ranked, p)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].ProductID < ranked[j].ProductID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// TopCustomers returns up to n customers ordered by revenue descending,
// ties broken by ascending CustomerID
func (m *MetricsSummary) TopCustomers(n int) []*CustomerMetrics {
	ranked := make([]*CustomerMetrics, 0, len(m.Customers))
	for _, c := range m.Customers {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].CustomerID < ranked[j].CustomerID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

// LowPerformers returns products whose total units sold fall below
// threshold, ordered by ascending ProductID
func (m *MetricsSummary) LowPerformers(threshold decimal.Decimal) []*ProductMetrics {
	low := make([]*ProductMetrics, 0)
	for _, p := range m.Products {
		if p.UnitsSold.LessThan(threshold) {
			low = append(low, p)
		}
	}
	sort.Slice(low, func(i, j int) bool {
		return low[i].ProductID < low[j].ProductID
	})
	return low
}

// RegionNames returns region names sorted by revenue descending, ties
// broken by ascending name
func (m *MetricsSummary) RegionNames() []string {
	names := make([]string, 0, len(m.Regions))
	for name := range m.Regions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := m.Regions[names[i]], m.Regions[names[j]]
		if !ri.Revenue.Equal(rj.Revenue) {
			return ri.Revenue.GreaterThan(rj.Revenue)
		}
		return names[i] < names[j]
	})
	return names
}

type dailyBucket struct {
	revenue   decimal.Decimal
	count     int
	customers map[string]struct{}
}

type regionBucket struct {
	revenue decimal.Decimal
	count   int
}

type productBucket struct {
	revenue decimal.Decimal
	units   decimal.Decimal
}

type customerBucket struct {
	revenue decimal.Decimal
	count   int
}

// Accumulator folds accepted records into running aggregates. The zero
// value is not usable; create one with NewAccumulator.
type Accumulator struct {
	totalRevenue decimal.Decimal
	count        int
	regions      map[string]*regionBucket
	products     map[string]*productBucket
	customers    map[string]*customerBucket
	daily        map[time.Time]*dailyBucket
}

// NewAccumulator creates an empty accumulator
func NewAccumulator() *Accumulator {
	return &Accumulator{
		regions:   make(map[string]*regionBucket),
		products:  make(map[string]*productBucket),
		customers: make(map[string]*customerBucket),
		daily:     make(map[time.Time]*dailyBucket),
	}
}

// Add folds a single record into the accumulator
func (a *Accumulator) Add(rec *models.AcceptedRecord) {
	a.totalRevenue = a.totalRevenue.Add(rec.Amount)
	a.count++

	region := a.regions[rec.Region]
	if region == nil {
		region = &regionBucket{}
		a.regions[rec.Region] = region
	}
	region.revenue = region.revenue.Add(rec.Amount)
	region.count++

	product := a.products[rec.ProductID]
	if product == nil {
		product = &productBucket{}
		a.products[rec.ProductID] = product
	}
	product.revenue = product.revenue.Add(rec.Amount)
	product.units = product.units.Add(rec.Quantity)

	customer := a.customers[rec.CustomerID]
	if customer == nil {
		customer = &customerBucket{}
		a.customers[rec.CustomerID] = customer
	}
	customer.revenue = customer.revenue.Add(rec.Amount)
	customer.count++

	day := models.DateOnly(rec.Date)
	bucket := a.daily[day]
	if bucket == nil {
		bucket = &dailyBucket{customers: make(map[string]struct{})}
		a.daily[day] = bucket
	}
	bucket.revenue = bucket.revenue.Add(rec.Amount)
	bucket.count++
	bucket.customers[rec.CustomerID] = struct{}{}
}

// Merge folds another accumulator into this one. Merging partitioned
// accumulators yields the same summary as a single-pass fold.
func (a *Accumulator) Merge(other *Accumulator) {
	a.totalRevenue = a.totalRevenue.Add(other.totalRevenue)
	a.count += other.count

	for name, src := range other.regions {
		dst := a.regions[name]
		if dst == nil {
			dst = &regionBucket{}
			a.regions[name] = dst
		}
		dst.revenue = dst.revenue.Add(src.revenue)
		dst.count += src.count
	}

	for id, src := range other.products {
		dst := a.products[id]
		if dst == nil {
			dst = &productBucket{}
			a.products[id] = dst
		}
		dst.revenue = dst.revenue.Add(src.revenue)
		dst.units = dst.units.Add(src.units)
	}

	for id, src := range other.customers {
		dst := a.customers[id]
		if dst == nil {
			dst = &customerBucket{}
			a.customers[id] = dst
		}
		dst.revenue = dst.revenue.Add(src.revenue)
		dst.count += src.count
	}

	for day, src := range other.daily {
		dst := a.daily[day]
		if dst == nil {
			dst = &dailyBucket{customers: make(map[string]struct{})}
			a.daily[day] = dst
		}
		dst.revenue = dst.revenue.Add(src.revenue)
		dst.count += src.count
		for c := range src.customers {
			dst.customers[c] = struct{}{}
		}
	}
}

// Summary materializes the accumulated state into an immutable
// MetricsSummary. The accumulator remains usable afterwards.
func (a *Accumulator) Summary() *MetricsSummary {
	summary := &MetricsSummary{
		TotalRevenue:     a.totalRevenue,
		TransactionCount: a.count,
		Regions:          make(map[string]*RegionMetrics, len(a.regions)),
		Products:         make(map[string]*ProductMetrics, len(a.products)),
		Customers:        make(map[string]*CustomerMetrics, len(a.customers)),
		Daily:            make([]*DailyMetrics, 0, len(a.daily)),
	}

	if a.count > 0 {
		summary.AverageOrderValue = a.totalRevenue.Div(decimal.NewFromInt(int64(a.count)))
	}

	for name, bucket := range a.regions {
		metrics := &RegionMetrics{Revenue: bucket.revenue, Count: bucket.count}
		if a.totalRevenue.IsPositive() {
			metrics.Share = bucket.revenue.Div(a.totalRevenue)
		}
		summary.Regions[name] = metrics
	}

	for id, bucket := range a.products {
		summary.Products[id] = &ProductMetrics{
			ProductID: id,
			Revenue:   bucket.revenue,
			UnitsSold: bucket.units,
		}
	}
	for rank, p := range summary.TopProducts(len(summary.Products)) {
		p.Rank = rank + 1
	}

	for id, bucket := range a.customers {
		summary.Customers[id] = &CustomerMetrics{
			CustomerID:    id,
			Revenue:       bucket.revenue,
			PurchaseCount: bucket.count,
		}
	}

	for day, bucket := range a.daily {
		summary.Daily = append(summary.Daily, &DailyMetrics{
			Date:            day,
			Revenue:         bucket.revenue,
			Count:           bucket.count,
			UniqueCustomers: len(bucket.customers),
		})
	}
	sort.Slice(summary.Daily, func(i, j int) bool {
		return summary.Daily[i].Date.Before(summary.Daily[j].Date)
	})

	for _, d := range summary.Daily {
		if summary.FirstDate.IsZero() {
			summary.FirstDate = d.Date
			summary.LastDate = d.Date
		}
		if d.Date.After(summary.LastDate) {
			summary.LastDate = d.Date
		}
	}

	var peakRevenue decimal.Decimal
	for _, d := range summary.Daily {
		if summary.PeakDay.IsZero() || d.Revenue.GreaterThan(peakRevenue) {
			summary.PeakDay = d.Date
			peakRevenue = d.Revenue
		}
	}

	return summary
}

// Build is the one-shot convenience: fold all records and materialize
func Build(records []*models.AcceptedRecord) *MetricsSummary {
	acc := NewAccumulator()
	for _, rec := range records {
		acc.Add(rec)
	}
	return acc.Summary()
}

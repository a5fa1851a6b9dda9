// Package analytics joins orders with inspection results and computes
// revenue risk metrics over the join.
package analytics

import (
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/resolve"
)

// Matcher resolves restaurant names and exposes reference data for them.
type Matcher interface {
	Resolver
	Info(name string) (model.MappingEntry, bool)
	Len() int
}

// Analyzer computes risk metrics over one immutable snapshot of orders and
// inspections. All methods are read-only and safe for concurrent use.
type Analyzer struct {
	orders      []model.Order
	inspections []model.Inspection
	matcher     Matcher
	enriched    []model.EnrichedOrder
	flags       inspection.FlagIndex
}

// New reduces the inspections to the latest row per identifier, joins the
// orders against it and indexes per-identifier history flags.
// A nil matcher resolves nothing.
func New(orders []model.Order, inspections []model.Inspection, matcher Matcher) *Analyzer {
	if matcher == nil {
		matcher = resolve.NewMatcher(nil)
	}
	a := &Analyzer{
		orders:      orders,
		inspections: inspections,
		matcher:     matcher,
		enriched:    Join(orders, inspection.LatestOverall(inspections), matcher),
		flags:       inspection.BuildFlagIndex(inspections),
	}

	matched := 0
	for _, e := range a.enriched {
		if e.Resolved() {
			matched++
		}
	}
	zap.L().Info("joined orders with inspections",
		zap.Int("orders", len(orders)),
		zap.Int("matched", matched),
		zap.Int("inspections", len(inspections)),
	)

	return a
}

// Enriched returns a copy of the joined rows.
func (a *Analyzer) Enriched() []model.EnrichedOrder {
	return slices.Clone(a.enriched)
}

// Orders returns the order count.
func (a *Analyzer) Orders() int { return len(a.orders) }

// Inspections returns the inspection row count.
func (a *Analyzer) Inspections() int { return len(a.inspections) }

func (a *Analyzer) totalRevenue() float64 {
	var total float64
	for _, o := range a.orders {
		total += o.Cost
	}
	return total
}

// Health reports what the analyzer was built from.
func (a *Analyzer) Health() HealthReport {
	return HealthReport{
		Status:            "ok",
		OrdersLoaded:      len(a.orders),
		InspectionsLoaded: len(a.inspections),
		RestaurantsMapped: a.matcher.Len(),
	}
}

// round2 rounds currency and percentages for output.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentage returns part/total*100 rounded, or 0 when total is 0.
func percentage(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return round2(part / total * 100)
}

const dateLayout = "2006-01-02"

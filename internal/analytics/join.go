package analytics

import (
	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/model"
)

// Resolver maps a restaurant name to a registry identifier.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// Join left-joins orders with the reduced inspection view. It returns exactly
// one EnrichedOrder per order, in input order. Orders whose restaurant does
// not resolve, or resolves to an identifier without an inspection row, carry
// a nil Inspection.
func Join(orders []model.Order, latest inspection.Latest, r Resolver) []model.EnrichedOrder {
	out := make([]model.EnrichedOrder, len(orders))
	for i, o := range orders {
		e := model.EnrichedOrder{Order: o}
		if id, ok := r.Resolve(o.RestaurantName); ok {
			e.Identifier = id
			if row, found := latest.Get(id); found {
				e.Inspection = &row
			}
		}
		out[i] = e
	}
	return out
}

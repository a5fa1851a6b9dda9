package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/model"
)

// DefaultWatchlistSize is used when a caller asks for a non-positive page size.
const DefaultWatchlistSize = 10

type entityKey struct {
	name string
	id   string
}

type entity struct {
	entityKey
	tally
	grade       *string
	lastInspect time.Time
}

// riskFlags renders the human-readable flags for one identifier's history.
func riskFlags(f inspection.Flags) []string {
	var flags []string
	if !f.Inspected {
		return flags
	}
	if f.CriticalCount > 0 {
		flags = append(flags, fmt.Sprintf("%d critical violations", f.CriticalCount))
	}
	if f.RodentCount > 0 {
		flags = append(flags, fmt.Sprintf("%d rodent violations", f.RodentCount))
	}
	if f.HasClosure {
		flags = append(flags, "closure history")
	}
	if model.IsRiskGrade(f.LatestGrade) {
		flags = append(flags, "grade "+f.LatestGrade)
	}
	return flags
}

// Watchlist ranks resolved restaurants with at least one risk flag by
// revenue and returns the top n (DefaultWatchlistSize when n <= 0). Flags are
// computed from the full inspection history of each identifier.
func (a *Analyzer) Watchlist(n int) WatchlistReport {
	if n <= 0 {
		n = DefaultWatchlistSize
	}

	entities := make(map[entityKey]*entity)
	for _, e := range a.enriched {
		if !e.Resolved() {
			continue
		}
		key := entityKey{name: e.RestaurantName, id: e.Identifier}
		ent, ok := entities[key]
		if !ok {
			ent = &entity{entityKey: key}
			entities[key] = ent
		}
		ent.add(e.Cost)
		if e.Inspection != nil {
			if ent.grade == nil && e.Inspection.Grade != "" {
				g := e.Inspection.Grade
				ent.grade = &g
			}
			if e.Inspection.InspectionDate.After(ent.lastInspect) {
				ent.lastInspect = e.Inspection.InspectionDate
			}
		}
	}

	ranked := make([]*entity, 0, len(entities))
	for _, ent := range entities {
		ranked = append(ranked, ent)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].name != ranked[j].name {
			return ranked[i].name < ranked[j].name
		}
		return ranked[i].id < ranked[j].id
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].revenue > ranked[j].revenue
	})

	report := WatchlistReport{Restaurants: []WatchlistRestaurant{}}
	var total float64
	for _, ent := range ranked {
		if len(report.Restaurants) == n {
			break
		}
		f := a.flags.Lookup(ent.id)
		flags := riskFlags(f)
		if len(flags) == 0 {
			continue
		}

		var last *string
		if !ent.lastInspect.IsZero() {
			s := ent.lastInspect.Format(dateLayout)
			last = &s
		}
		revenue := round2(ent.revenue)
		total += revenue

		report.Restaurants = append(report.Restaurants, WatchlistRestaurant{
			Rank:               len(report.Restaurants) + 1,
			RestaurantName:     ent.name,
			Identifier:         ent.id,
			Revenue:            revenue,
			OrderCount:         ent.count,
			LatestGrade:        ent.grade,
			CriticalViolations: f.CriticalCount,
			RodentViolations:   f.RodentCount,
			LastInspectionDate: last,
			RiskFlags:          flags,
		})
	}
	report.TotalWatchlistRevenue = round2(total)
	return report
}

package analytics

import (
	"time"

	"github.com/sells-group/inspection-risk/internal/inspection"
)

// maxRodentOrders caps the order detail list in RodentReport.
const maxRodentOrders = 100

type rodentDetail struct {
	description string
	latest      time.Time
}

// RodentOrders totals revenue from restaurants whose inspection history
// contains any rodent violation. Matching is by identifier against the full
// history, not just the latest inspection row.
func (a *Analyzer) RodentOrders() RodentReport {
	report := RodentReport{Orders: []RodentOrder{}}

	rows := inspection.FilterRodent(a.inspections)
	if len(rows) == 0 {
		return report
	}

	details := make(map[string]*rodentDetail)
	for _, r := range rows {
		d, ok := details[r.Identifier]
		if !ok {
			d = &rodentDetail{description: r.ViolationDescription}
			details[r.Identifier] = d
		}
		if r.InspectionDate.After(d.latest) {
			d.latest = r.InspectionDate
		}
	}

	var total float64
	names := make(map[string]bool)
	for _, e := range a.enriched {
		if !e.Resolved() {
			continue
		}
		d, ok := details[e.Identifier]
		if !ok {
			continue
		}

		total += e.Cost
		report.OrderCount++
		// Distinct names, not identifiers: name variants of one restaurant count separately.
		names[e.RestaurantName] = true

		if len(report.Orders) < maxRodentOrders {
			date := "Unknown"
			if !d.latest.IsZero() {
				date = d.latest.Format(dateLayout)
			}
			report.Orders = append(report.Orders, RodentOrder{
				OrderID:              e.OrderID,
				RestaurantName:       e.RestaurantName,
				Cost:                 round2(e.Cost),
				ViolationDescription: d.description,
				InspectionDate:       date,
				Identifier:           e.Identifier,
			})
		}
	}

	report.TotalRodentRevenue = round2(total)
	report.UniqueRestaurants = len(names)
	return report
}

package analytics

// Summary computes every metric and the basic order totals. Each sub-report
// is computed independently.
func (a *Analyzer) Summary() SummaryReport {
	var matchedCount int
	var matchedRevenue float64
	for _, e := range a.enriched {
		if e.Resolved() {
			matchedCount++
			matchedRevenue += e.Cost
		}
	}

	rodent := a.RodentOrders()
	risk := a.RevenueAtRisk()

	grades := a.RevenueByGrade()
	gradeBreakdown := make(map[string]float64, len(grades.Grades))
	for _, g := range grades.Grades {
		gradeBreakdown[g.Grade] = g.Revenue
	}

	boroughs := a.BoroughBreakdown()
	boroughBreakdown := make(map[string]float64, len(boroughs.Boroughs))
	for _, b := range boroughs.Boroughs {
		boroughBreakdown[b.Borough] = b.Revenue
	}

	return SummaryReport{
		TotalOrders:           len(a.orders),
		TotalRevenue:          round2(a.totalRevenue()),
		MatchedOrders:         matchedCount,
		MatchedRevenue:        round2(matchedRevenue),
		RodentRevenue:         rodent.TotalRodentRevenue,
		RodentOrderCount:      rodent.OrderCount,
		RodentRestaurantCount: rodent.UniqueRestaurants,
		RevenueAtRisk:         risk.TotalRevenueAtRisk,
		RiskOrderCount:        risk.OrderCount,
		GradeBreakdown:        gradeBreakdown,
		BoroughBreakdown:      boroughBreakdown,
		TopWatchlist:          a.Watchlist(DefaultWatchlistSize).Restaurants,
	}
}

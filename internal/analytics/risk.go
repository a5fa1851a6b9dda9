package analytics

import (
	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/model"
)

// Revenue-at-risk categories.
const (
	RiskClosed            = "closed"
	RiskGradeC            = "grade_c"
	RiskGradePending      = "grade_pending"
	RiskCriticalViolation = "critical_violation"
)

// RiskPredicate decides whether an enriched order falls in a risk category.
type RiskPredicate struct {
	Category string
	Match    func(model.EnrichedOrder) bool
}

// RiskPredicates are evaluated independently; an order may match several.
var RiskPredicates = []RiskPredicate{
	{RiskClosed, func(e model.EnrichedOrder) bool {
		return e.Inspection != nil && inspection.IsClosure(e.Inspection.Action)
	}},
	{RiskGradeC, func(e model.EnrichedOrder) bool {
		return e.Grade() == model.GradeC
	}},
	{RiskGradePending, func(e model.EnrichedOrder) bool {
		return model.IsPendingGrade(e.Grade())
	}},
	{RiskCriticalViolation, func(e model.EnrichedOrder) bool {
		return e.Inspection != nil && inspection.IsCritical(e.Inspection.CriticalFlag)
	}},
}

// RevenueAtRisk sums revenue per risk category and, separately, over the
// union of at-risk orders so an order matching several categories is
// counted once in the total.
func (a *Analyzer) RevenueAtRisk() RiskReport {
	perCategory := make(map[string]*tally, len(RiskPredicates))
	for _, p := range RiskPredicates {
		perCategory[p.Category] = &tally{}
	}

	atRisk := make(map[int]bool)
	for _, e := range a.enriched {
		for _, p := range RiskPredicates {
			if p.Match(e) {
				perCategory[p.Category].add(e.Cost)
				atRisk[e.OrderID] = true
			}
		}
	}

	var total float64
	for _, e := range a.enriched {
		if atRisk[e.OrderID] {
			total += e.Cost
		}
	}

	report := RiskReport{
		TotalRevenueAtRisk: round2(total),
		OrderCount:         len(atRisk),
		Breakdown:          make(map[string]float64, len(perCategory)),
		RiskCategories:     make(map[string]int, len(perCategory)),
	}
	for cat, t := range perCategory {
		report.Breakdown[cat] = round2(t.revenue)
		report.RiskCategories[cat] = t.count
	}
	return report
}

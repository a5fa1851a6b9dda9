package analytics

import (
	"sort"
	"strings"

	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/model"
)

// Violation categories, in precedence order.
const (
	CategoryRodent      = "rodent"
	CategoryTemperature = "temperature"
	CategorySanitation  = "sanitation"
	CategoryPest        = "pest"
)

// CategorizeViolation assigns a violation description to the first category
// it matches, or "" when it matches none.
func CategorizeViolation(description string) string {
	desc := strings.ToUpper(description)
	switch {
	case desc == "":
		return ""
	case inspection.IsRodent(desc):
		return CategoryRodent
	case strings.Contains(desc, "FOOD") && containsAny(desc, "TEMPERATURE", "COLD", "HOT"):
		return CategoryTemperature
	case containsAny(desc, "SANIT", "CLEAN"):
		return CategorySanitation
	case containsAny(desc, "PEST", "INSECT", "FLY", "ROACH"):
		return CategoryPest
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// borough returns the joined inspection borough, falling back to the
// reference table. Empty when neither knows.
func (a *Analyzer) borough(e model.EnrichedOrder) string {
	if e.Inspection != nil && e.Inspection.Borough != "" {
		return e.Inspection.Borough
	}
	if info, ok := a.matcher.Info(e.RestaurantName); ok {
		return strings.ToUpper(strings.TrimSpace(info.Borough))
	}
	return ""
}

type boroughTally struct {
	tally
	violations map[string]int
}

// topViolation returns the most frequent description; ties go to the
// lexicographically smallest one.
func (b *boroughTally) topViolation() *string {
	var top string
	best := 0
	for desc, n := range b.violations {
		if n > best || (n == best && desc < top) {
			top, best = desc, n
		}
	}
	if best == 0 {
		return nil
	}
	return &top
}

// BoroughBreakdown splits revenue by borough, reports each borough's most
// frequent violation, and sums revenue per violation category.
func (a *Analyzer) BoroughBreakdown() BoroughReport {
	total := a.totalRevenue()

	tallies := make(map[string]*boroughTally)
	categories := make(map[string]float64)
	for _, e := range a.enriched {
		var desc string
		if e.Inspection != nil {
			desc = e.Inspection.ViolationDescription
		}
		if cat := CategorizeViolation(desc); cat != "" {
			categories[cat] += e.Cost
		}

		boro := a.borough(e)
		if boro == "" {
			continue
		}
		t, ok := tallies[boro]
		if !ok {
			t = &boroughTally{violations: make(map[string]int)}
			tallies[boro] = t
		}
		t.add(e.Cost)
		if desc != "" {
			t.violations[desc]++
		}
	}

	names := make([]string, 0, len(tallies))
	for name := range tallies {
		names = append(names, name)
	}
	sort.Strings(names)

	report := BoroughReport{
		TotalRevenue:        round2(total),
		Boroughs:            make([]BoroughRevenue, 0, len(names)),
		ViolationCategories: make(map[string]float64, len(categories)),
	}
	for _, name := range names {
		t := tallies[name]
		report.Boroughs = append(report.Boroughs, BoroughRevenue{
			Borough:              name,
			Revenue:              round2(t.revenue),
			OrderCount:           t.count,
			Percentage:           percentage(t.revenue, total),
			TopViolationCategory: t.topViolation(),
		})
	}
	for cat, rev := range categories {
		report.ViolationCategories[cat] = round2(rev)
	}
	return report
}

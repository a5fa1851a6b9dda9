package analytics

import "github.com/sells-group/inspection-risk/internal/model"

type tally struct {
	revenue float64
	count   int
}

func (t *tally) add(cost float64) {
	t.revenue += cost
	t.count++
}

// RevenueByGrade buckets order revenue by the joined inspection grade.
// Orders that are unresolved, or resolved but ungraded, land in the
// unmatched bucket.
func (a *Analyzer) RevenueByGrade() GradeReport {
	total := a.totalRevenue()

	buckets := make(map[string]*tally, len(model.GradedGrades))
	var unmatched tally
	for _, e := range a.enriched {
		g := e.Grade()
		if !model.IsGraded(g) {
			unmatched.add(e.Cost)
			continue
		}
		b, ok := buckets[g]
		if !ok {
			b = &tally{}
			buckets[g] = b
		}
		b.add(e.Cost)
	}

	grades := make([]GradeRevenue, 0, len(buckets))
	for _, g := range model.GradedGrades {
		b, ok := buckets[g]
		if !ok {
			continue
		}
		grades = append(grades, GradeRevenue{
			Grade:      g,
			Revenue:    round2(b.revenue),
			OrderCount: b.count,
			Percentage: percentage(b.revenue, total),
		})
	}

	return GradeReport{
		TotalRevenue:        round2(total),
		Grades:              grades,
		UnmatchedRevenue:    round2(unmatched.revenue),
		UnmatchedOrderCount: unmatched.count,
	}
}

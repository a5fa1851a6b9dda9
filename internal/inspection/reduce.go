// Package inspection reduces and filters inspection registry rows.
package inspection

import (
	"slices"
	"sort"
	"time"

	"github.com/sells-group/inspection-risk/internal/model"
)

// Latest holds at most one inspection row per identifier. It is only
// produced by the reductions in this package, which is what keeps a join
// against it from fanning out.
type Latest map[string]model.Inspection

// Get returns the row for an identifier.
func (l Latest) Get(id string) (model.Inspection, bool) {
	row, ok := l[id]
	return row, ok
}

// Sorted returns the rows ordered by identifier.
func (l Latest) Sorted() []model.Inspection {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]model.Inspection, 0, len(ids))
	for _, id := range ids {
		out = append(out, l[id])
	}
	return out
}

// LatestGraded keeps, per identifier, the graded row with the most recent
// grade date.
func LatestGraded(rows []model.Inspection) Latest {
	graded := make([]model.Inspection, 0, len(rows))
	for _, r := range rows {
		if model.IsGraded(r.Grade) {
			graded = append(graded, r)
		}
	}
	return latestBy(graded, func(r model.Inspection) time.Time { return r.GradeDate })
}

// LatestOverall keeps, per identifier, the row with the most recent
// inspection date regardless of grade.
func LatestOverall(rows []model.Inspection) Latest {
	return latestBy(rows, func(r model.Inspection) time.Time { return r.InspectionDate })
}

// latestBy takes the first row per identifier after a stable sort on key,
// newest first with missing dates last. Equal dates keep input order.
func latestBy(rows []model.Inspection, key func(model.Inspection) time.Time) Latest {
	out := make(Latest)
	if len(rows) == 0 {
		return out
	}

	sorted := slices.Clone(rows)
	SortNewestFirst(sorted, key)

	for _, r := range sorted {
		if _, ok := out[r.Identifier]; !ok {
			out[r.Identifier] = r
		}
	}
	return out
}

// SortNewestFirst stably sorts rows by key descending; zero times sort last.
func SortNewestFirst(rows []model.Inspection, key func(model.Inspection) time.Time) {
	slices.SortStableFunc(rows, func(a, b model.Inspection) int {
		ka, kb := key(a), key(b)
		switch {
		case ka.IsZero() && kb.IsZero():
			return 0
		case ka.IsZero():
			return 1
		case kb.IsZero():
			return -1
		}
		return kb.Compare(ka)
	})
}

package inspection

import (
	"slices"
	"time"

	"github.com/sells-group/inspection-risk/internal/model"
)

// Flags summarizes an identifier's full inspection history.
type Flags struct {
	CriticalCount int
	RodentCount   int
	HasClosure    bool
	// LatestGrade is the grade of the row with the newest grade date, which
	// may be empty when that row was never graded.
	LatestGrade string
	// Inspected is false when the registry has no rows for the identifier.
	Inspected bool
}

// FlagIndex maps identifiers to their history flags.
type FlagIndex map[string]Flags

// BuildFlagIndex scans rows once and computes Flags for every identifier.
func BuildFlagIndex(rows []model.Inspection) FlagIndex {
	idx := make(FlagIndex)
	if len(rows) == 0 {
		return idx
	}

	for _, r := range rows {
		f := idx[r.Identifier]
		f.Inspected = true
		if IsCritical(r.CriticalFlag) {
			f.CriticalCount++
		}
		if IsRodent(r.ViolationDescription) {
			f.RodentCount++
		}
		if IsClosure(r.Action) {
			f.HasClosure = true
		}
		idx[r.Identifier] = f
	}

	byGradeDate := slices.Clone(rows)
	SortNewestFirst(byGradeDate, func(r model.Inspection) time.Time { return r.GradeDate })
	seen := make(map[string]bool, len(idx))
	for _, r := range byGradeDate {
		if seen[r.Identifier] {
			continue
		}
		seen[r.Identifier] = true
		f := idx[r.Identifier]
		f.LatestGrade = r.Grade
		idx[r.Identifier] = f
	}

	return idx
}

// Lookup returns the flags for an identifier; the zero value when unknown.
func (idx FlagIndex) Lookup(id string) Flags {
	return idx[id]
}

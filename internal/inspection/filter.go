package inspection

import (
	"strings"

	"github.com/sells-group/inspection-risk/internal/model"
)

// RodentKeywords mark a violation description as rodent related. Matching is
// by substring, so "RAT" also hits words that merely contain it.
var RodentKeywords = []string{"RODENT", "RAT", "MICE", "MOUSE", "VERMIN"}

// ClosureKeywords mark an inspection action as a closure.
var ClosureKeywords = []string{"CLOSED", "RE-CLOSED", "RECLOSED"}

// CriticalFlag is the critical_flag value of a critical violation.
const CriticalFlag = "CRITICAL"

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	s = strings.ToUpper(s)
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// IsRodent reports whether a violation description is rodent related.
func IsRodent(description string) bool {
	return containsAny(description, RodentKeywords)
}

// IsClosure reports whether an inspection action closed the establishment.
func IsClosure(action string) bool {
	return containsAny(action, ClosureKeywords)
}

// IsCritical reports whether a critical flag marks a critical violation.
func IsCritical(flag string) bool {
	return strings.EqualFold(flag, CriticalFlag)
}

func filter(rows []model.Inspection, keep func(model.Inspection) bool) []model.Inspection {
	var out []model.Inspection
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// FilterRodent returns every rodent-related row, in input order.
func FilterRodent(rows []model.Inspection) []model.Inspection {
	return filter(rows, func(r model.Inspection) bool { return IsRodent(r.ViolationDescription) })
}

// FilterCritical returns every critical violation row, in input order.
func FilterCritical(rows []model.Inspection) []model.Inspection {
	return filter(rows, func(r model.Inspection) bool { return IsCritical(r.CriticalFlag) })
}

// FilterClosed returns every row whose action records a closure, in input order.
func FilterClosed(rows []model.Inspection) []model.Inspection {
	return filter(rows, func(r model.Inspection) bool { return IsClosure(r.Action) })
}

// Identifiers returns the distinct identifiers of rows as a set.
func Identifiers(rows []model.Inspection) map[string]bool {
	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		ids[r.Identifier] = true
	}
	return ids
}

package model

import "time"

// Grades assigned by the inspection registry.
const (
	GradeA       = "A"
	GradeB       = "B"
	GradeC       = "C"
	GradePending = "P" // grade pending after re-inspection
	GradeNotYet  = "N" // not yet graded
	GradeZ       = "Z" // grade pending
)

// GradedGrades lists every grade value that counts as "graded", in output order.
var GradedGrades = []string{GradeA, GradeB, GradeC, GradeNotYet, GradePending, GradeZ}

// Inspection is one row of the inspection registry: a single violation
// observed during a single inspection event. Many rows share an Identifier.
// A zero InspectionDate or GradeDate means the registry had no value.
type Inspection struct {
	Identifier           string    `json:"camis"`
	EstablishmentName    string    `json:"dba"`
	Borough              string    `json:"boro"`
	Building             string    `json:"building,omitempty"`
	Street               string    `json:"street,omitempty"`
	ZipCode              string    `json:"zipcode,omitempty"`
	CuisineDescription   string    `json:"cuisine_description,omitempty"`
	InspectionDate       time.Time `json:"inspection_date"`
	Action               string    `json:"action"`
	ViolationCode        string    `json:"violation_code"`
	ViolationDescription string    `json:"violation_description"`
	CriticalFlag         string    `json:"critical_flag"`
	Score                *float64  `json:"score,omitempty"`
	Grade                string    `json:"grade"`
	GradeDate            time.Time `json:"grade_date"`
	InspectionType       string    `json:"inspection_type,omitempty"`
}

// IsGraded reports whether g is one of the registry's grade values.
func IsGraded(g string) bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeZ, GradePending, GradeNotYet:
		return true
	}
	return false
}

// IsRiskGrade reports whether g is C or one of the pending grades.
func IsRiskGrade(g string) bool {
	return g == GradeC || IsPendingGrade(g)
}

// IsPendingGrade reports whether g is P, N or Z.
func IsPendingGrade(g string) bool {
	return g == GradePending || g == GradeNotYet || g == GradeZ
}

package registry

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/inspection-risk/internal/model"
)

// text decodes a JSON string or number as its literal text, so numeric
// identifiers keep their exact digits.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
		return nil
	}
	*t = text(b)
	return nil
}

// rawRow is one record of the inspection dataset as served by the API.
type rawRow struct {
	Camis                text `json:"camis"`
	DBA                  text `json:"dba"`
	Boro                 text `json:"boro"`
	Building             text `json:"building"`
	Street               text `json:"street"`
	ZipCode              text `json:"zipcode"`
	CuisineDescription   text `json:"cuisine_description"`
	InspectionDate       text `json:"inspection_date"`
	Action               text `json:"action"`
	ViolationCode        text `json:"violation_code"`
	ViolationDescription text `json:"violation_description"`
	CriticalFlag         text `json:"critical_flag"`
	Score                text `json:"score"`
	Grade                text `json:"grade"`
	GradeDate            text `json:"grade_date"`
	InspectionType       text `json:"inspection_type"`
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseTimestamp returns the zero time for empty or unparseable values.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseScore(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func upper(t text) string {
	return strings.ToUpper(strings.TrimSpace(string(t)))
}

// clean converts an API row into a model.Inspection: free-text fields used
// for matching are upper-cased and trimmed, dates and score are parsed.
func (r rawRow) clean() model.Inspection {
	return model.Inspection{
		Identifier:           strings.TrimSpace(string(r.Camis)),
		EstablishmentName:    upper(r.DBA),
		Borough:              upper(r.Boro),
		Building:             string(r.Building),
		Street:               string(r.Street),
		ZipCode:              string(r.ZipCode),
		CuisineDescription:   string(r.CuisineDescription),
		InspectionDate:       parseTimestamp(string(r.InspectionDate)),
		Action:               upper(r.Action),
		ViolationCode:        string(r.ViolationCode),
		ViolationDescription: upper(r.ViolationDescription),
		CriticalFlag:         string(r.CriticalFlag),
		Score:                parseScore(string(r.Score)),
		Grade:                upper(r.Grade),
		GradeDate:            parseTimestamp(string(r.GradeDate)),
		InspectionType:       string(r.InspectionType),
	}
}

package report

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/analytics"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/resolve"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sampleAnalyzer() *analytics.Analyzer {
	matcher := resolve.NewMatcher([]model.MappingEntry{
		{Name: "Joe's Pizza", Identifier: "123", Borough: "Manhattan"},
	})
	orders := []model.Order{
		{OrderID: 1, RestaurantName: "Joe's Pizza - CLOSED", Cost: 20},
		{OrderID: 2, RestaurantName: "Unknown Diner", Cost: 5},
	}
	inspections := []model.Inspection{{
		Identifier:           "123",
		Borough:              "MANHATTAN",
		InspectionDate:       time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Grade:                "C",
		ViolationDescription: "EVIDENCE OF RODENT ACTIVITY",
		CriticalFlag:         "CRITICAL",
		Action:               "CLOSED",
	}}
	return analytics.New(orders, inspections, matcher)
}

func rowStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func findRow(t *testing.T, sheet *xlsx.Sheet, label string) *xlsx.Row {
	t.Helper()
	for _, row := range sheet.Rows {
		if len(row.Cells) > 0 && row.Cells[0].String() == label {
			return row
		}
	}
	t.Fatalf("row %q not found in sheet %s", label, sheet.Name)
	return nil
}

func floatAt(t *testing.T, row *xlsx.Row, i int) float64 {
	t.Helper()
	require.Greater(t, len(row.Cells), i)
	v, err := row.Cells[i].Float()
	require.NoError(t, err)
	return v
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "inspection_risk_report_30days.xlsx", Filename(30))
}

func TestBuild_SheetOrder(t *testing.T) {
	f, err := Build(sampleAnalyzer(), Options{Days: 90})
	require.NoError(t, err)

	var names []string
	for _, s := range f.Sheets {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{SheetSummary, SheetGrades, SheetRodent, SheetRisk, SheetBoroughs, SheetWatchlist}, names)
}

func TestWrite_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	generated := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, Write(&buf, sampleAnalyzer(), Options{Days: 30, GeneratedAt: generated}))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	summary := f.Sheet[SheetSummary]
	require.NotNil(t, summary)
	assert.Equal(t, []string{"Metric", "Value"}, rowStrings(summary.Rows[0]))
	assert.Equal(t, 30.0, floatAt(t, findRow(t, summary, "Window (days)"), 1))
	assert.Equal(t, "2024-06-01T12:00:00Z", findRow(t, summary, "Generated").Cells[1].String())
	assert.Equal(t, 25.0, floatAt(t, findRow(t, summary, "Total Revenue"), 1))
	assert.Equal(t, 20.0, floatAt(t, findRow(t, summary, "Revenue at Risk"), 1))

	grades := f.Sheet[SheetGrades]
	require.NotNil(t, grades)
	assert.Equal(t, 20.0, floatAt(t, findRow(t, grades, "C"), 1))
	assert.Equal(t, 5.0, floatAt(t, findRow(t, grades, "Unmatched"), 1))

	risk := f.Sheet[SheetRisk]
	require.NotNil(t, risk)
	assert.Equal(t, 20.0, floatAt(t, findRow(t, risk, analytics.RiskClosed), 1))
	assert.Equal(t, 0.0, floatAt(t, findRow(t, risk, analytics.RiskGradePending), 1))
	assert.Equal(t, 20.0, floatAt(t, findRow(t, risk, "Total Revenue at Risk"), 1))

	rodent := f.Sheet[SheetRodent]
	require.NotNil(t, rodent)
	detail := findRow(t, rodent, "Order ID")
	assert.Equal(t, []string{"Order ID", "Restaurant", "CAMIS", "Cost", "Violation", "Inspection Date"}, rowStrings(detail))
	last := rodent.Rows[len(rodent.Rows)-1]
	assert.Equal(t, "123", last.Cells[2].String())
	assert.Equal(t, "2024-01-10", last.Cells[5].String())

	boroughs := f.Sheet[SheetBoroughs]
	require.NotNil(t, boroughs)
	manhattan := findRow(t, boroughs, "MANHATTAN")
	assert.Equal(t, 20.0, floatAt(t, manhattan, 1))
	assert.Equal(t, "EVIDENCE OF RODENT ACTIVITY", manhattan.Cells[4].String())
	assert.Equal(t, 20.0, floatAt(t, findRow(t, boroughs, analytics.CategoryRodent), 1))

	watch := f.Sheet[SheetWatchlist]
	require.NotNil(t, watch)
	require.GreaterOrEqual(t, len(watch.Rows), 3)
	first := watch.Rows[1]
	assert.Equal(t, "Joe's Pizza - CLOSED", first.Cells[1].String())
	assert.Equal(t, "C", first.Cells[5].String())
	assert.Contains(t, first.Cells[9].String(), "closure history")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), Filename(7))
	require.NoError(t, Save(path, sampleAnalyzer(), Options{Days: 7}))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	assert.Len(t, f.Sheets, 6)
}

func TestBuild_EmptyAnalyzer(t *testing.T) {
	f, err := Build(analytics.New(nil, nil, nil), Options{Days: 90})
	require.NoError(t, err)

	boroughs := f.Sheet[SheetBoroughs]
	require.NotNil(t, boroughs)
	assert.Len(t, boroughs.Rows, 1)

	watch := f.Sheet[SheetWatchlist]
	require.NotNil(t, watch)
	assert.Len(t, watch.Rows, 2)
}

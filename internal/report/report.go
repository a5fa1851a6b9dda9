// Package report renders analytics for one window as an xlsx workbook.
package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/inspection-risk/internal/analytics"
)

// Sheet names, in workbook order.
const (
	SheetSummary   = "Summary"
	SheetGrades    = "Grades"
	SheetRodent    = "Rodent"
	SheetRisk      = "Risk"
	SheetBoroughs  = "Boroughs"
	SheetWatchlist = "Watchlist"
)

// Options configures a report.
type Options struct {
	Days          int
	WatchlistSize int       // default analytics.DefaultWatchlistSize
	GeneratedAt   time.Time // default time.Now()
}

// Filename is the download name for a window's report.
func Filename(days int) string {
	return fmt.Sprintf("inspection_risk_report_%ddays.xlsx", days)
}

// Build renders every metric of the analyzer into a new workbook.
func Build(a *analytics.Analyzer, opts Options) (*xlsx.File, error) {
	if opts.WatchlistSize <= 0 {
		opts.WatchlistSize = analytics.DefaultWatchlistSize
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}

	f := xlsx.NewFile()
	steps := []struct {
		name  string
		write func(*xlsx.Sheet)
	}{
		{SheetSummary, func(s *xlsx.Sheet) { writeSummary(s, a.Summary(), opts) }},
		{SheetGrades, func(s *xlsx.Sheet) { writeGrades(s, a.RevenueByGrade()) }},
		{SheetRodent, func(s *xlsx.Sheet) { writeRodent(s, a.RodentOrders()) }},
		{SheetRisk, func(s *xlsx.Sheet) { writeRisk(s, a.RevenueAtRisk()) }},
		{SheetBoroughs, func(s *xlsx.Sheet) { writeBoroughs(s, a.BoroughBreakdown()) }},
		{SheetWatchlist, func(s *xlsx.Sheet) { writeWatchlist(s, a.Watchlist(opts.WatchlistSize)) }},
	}
	for _, step := range steps {
		sheet, err := f.AddSheet(step.name)
		if err != nil {
			return nil, eris.Wrapf(err, "report: add sheet %s", step.name)
		}
		step.write(sheet)
	}
	return f, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, a *analytics.Analyzer, opts Options) error {
	f, err := Build(a, opts)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write workbook")
	}
	return nil
}

// Save builds the workbook and writes it to path.
func Save(path string, a *analytics.Analyzer, opts Options) error {
	f, err := Build(a, opts)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

// cell is a single value appended to a row; string and float64 are typed,
// nil leaves the cell empty.
type cell any

func addRow(s *xlsx.Sheet, values ...cell) {
	row := s.AddRow()
	for _, v := range values {
		c := row.AddCell()
		switch v := v.(type) {
		case string:
			c.SetString(v)
		case *string:
			if v != nil {
				c.SetString(*v)
			}
		case float64:
			c.SetFloat(v)
		case int:
			c.SetInt(v)
		}
	}
}

func writeSummary(s *xlsx.Sheet, sum analytics.SummaryReport, opts Options) {
	addRow(s, "Metric", "Value")
	addRow(s, "Window (days)", opts.Days)
	addRow(s, "Generated", opts.GeneratedAt.Format(time.RFC3339))
	addRow(s, "Total Orders", sum.TotalOrders)
	addRow(s, "Total Revenue", sum.TotalRevenue)
	addRow(s, "Matched Orders", sum.MatchedOrders)
	addRow(s, "Matched Revenue", sum.MatchedRevenue)
	addRow(s, "Revenue at Risk", sum.RevenueAtRisk)
	addRow(s, "Risk Orders", sum.RiskOrderCount)
	addRow(s, "Rodent Revenue", sum.RodentRevenue)
	addRow(s, "Rodent Orders", sum.RodentOrderCount)
	addRow(s, "Rodent Restaurants", sum.RodentRestaurantCount)
}

func writeGrades(s *xlsx.Sheet, r analytics.GradeReport) {
	addRow(s, "Grade", "Revenue", "Orders", "% of Total")
	for _, g := range r.Grades {
		addRow(s, g.Grade, g.Revenue, g.OrderCount, g.Percentage)
	}
	addRow(s, "Unmatched", r.UnmatchedRevenue, r.UnmatchedOrderCount)
	addRow(s, "Total", r.TotalRevenue)
}

func writeRodent(s *xlsx.Sheet, r analytics.RodentReport) {
	addRow(s, "Total Rodent Revenue", r.TotalRodentRevenue)
	addRow(s, "Affected Orders", r.OrderCount)
	addRow(s, "Restaurants", r.UniqueRestaurants)
	addRow(s)
	addRow(s, "Order ID", "Restaurant", "CAMIS", "Cost", "Violation", "Inspection Date")
	for _, o := range r.Orders {
		addRow(s, o.OrderID, o.RestaurantName, o.Identifier, o.Cost, o.ViolationDescription, o.InspectionDate)
	}
}

func writeRisk(s *xlsx.Sheet, r analytics.RiskReport) {
	addRow(s, "Risk Category", "Revenue", "Orders")
	for _, p := range analytics.RiskPredicates {
		addRow(s, p.Category, r.Breakdown[p.Category], r.RiskCategories[p.Category])
	}
	addRow(s, "Total Revenue at Risk", r.TotalRevenueAtRisk, r.OrderCount)
}

func writeBoroughs(s *xlsx.Sheet, r analytics.BoroughReport) {
	addRow(s, "Borough", "Revenue", "Orders", "% of Total", "Top Violation")
	for _, b := range r.Boroughs {
		addRow(s, b.Borough, b.Revenue, b.OrderCount, b.Percentage, b.TopViolationCategory)
	}
	if len(r.ViolationCategories) == 0 {
		return
	}

	addRow(s)
	addRow(s, "Violation Category", "Revenue")
	cats := slices.Collect(maps.Keys(r.ViolationCategories))
	slices.SortFunc(cats, func(x, y string) int {
		if c := cmp.Compare(r.ViolationCategories[y], r.ViolationCategories[x]); c != 0 {
			return c
		}
		return strings.Compare(x, y)
	})
	for _, c := range cats {
		addRow(s, c, r.ViolationCategories[c])
	}
}

func writeWatchlist(s *xlsx.Sheet, r analytics.WatchlistReport) {
	addRow(s, "#", "Restaurant", "CAMIS", "Revenue", "Orders", "Grade",
		"Critical", "Rodent", "Last Inspection", "Risk Flags")
	for _, w := range r.Restaurants {
		addRow(s, w.Rank, w.RestaurantName, w.Identifier, w.Revenue, w.OrderCount, w.LatestGrade,
			w.CriticalViolations, w.RodentViolations, w.LastInspectionDate, strings.Join(w.RiskFlags, "; "))
	}
	addRow(s, "Total", "", "", r.TotalWatchlistRevenue)
}

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-risk/internal/inspection"
	"github.com/sells-group/inspection-risk/internal/loader"
	"github.com/sells-group/inspection-risk/internal/model"
	"github.com/sells-group/inspection-risk/internal/service"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [restaurant name]",
	Short: "Show the full inspection history behind a restaurant",
	Long: "Resolves a restaurant name through the mapping, fetches its complete inspection history from the registry " +
		"and prints its latest grade, violation counts and orders. With --coverage, checks which mapped identifiers have any registry rows.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		coverage, _ := cmd.Flags().GetBool("coverage")
		if !coverage && len(args) == 0 {
			return eris.New("inspect: restaurant name or --coverage is required")
		}

		base, err := service.FileBase(cfg.Orders.CSVPath, cfg.Mapping.Path)(ctx)
		if err != nil {
			return err
		}
		reg := newRegistry(cfg.Registry)

		if coverage {
			ids := base.Matcher.Identifiers()
			rows, err := reg.FetchByIdentifiers(ctx, ids)
			if err != nil {
				return eris.Wrap(err, "inspect: coverage")
			}
			formatCoverage(cmd.OutOrStdout(), ids, rows)
			return nil
		}

		name := args[0]
		id, ok := base.Matcher.Resolve(name)
		if !ok {
			return eris.Errorf("inspect: no mapping for %q", name)
		}
		rows, err := reg.FetchByIdentifiers(ctx, []string{id})
		if err != nil {
			return eris.Wrapf(err, "inspect: %s", name)
		}
		formatHistory(cmd.OutOrStdout(), name, id, rows, loader.ForRestaurant(base.Orders, name))
		return nil
	},
}

// formatHistory writes one restaurant's inspection summary and orders to out.
func formatHistory(out io.Writer, name, id string, rows []model.Inspection, orders []model.Order) {
	_, _ = fmt.Fprintf(out, "%s (CAMIS %s)\n", name, id)

	if latest, ok := inspection.LatestGraded(rows).Get(id); ok {
		_, _ = fmt.Fprintf(out, "latest grade: %s (%s)\n", latest.Grade, formatDate(latest.GradeDate))
	} else {
		_, _ = fmt.Fprintln(out, "latest grade: none")
	}
	_, _ = fmt.Fprintf(out, "inspection rows: %d\n", len(rows))
	_, _ = fmt.Fprintf(out, "critical violations: %d\n", len(inspection.FilterCritical(rows)))
	_, _ = fmt.Fprintf(out, "rodent violations: %d\n", len(inspection.FilterRodent(rows)))
	_, _ = fmt.Fprintf(out, "closure actions: %d\n\n", len(inspection.FilterClosed(rows)))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ORDER\tCOST\tDAY\tRATING")
	_, _ = fmt.Fprintln(w, "-----\t----\t---\t------")
	var total float64
	for _, o := range orders {
		rating := "-"
		if o.Rating != nil {
			rating = fmt.Sprintf("%.0f", *o.Rating)
		}
		_, _ = fmt.Fprintf(w, "%d\t%.2f\t%s\t%s\n", o.OrderID, o.Cost, o.DayOfWeek, rating)
		total += o.Cost
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\n%d orders, %.2f revenue\n", len(orders), total)
}

// formatCoverage lists mapped identifiers with no registry rows.
func formatCoverage(out io.Writer, ids []string, rows []model.Inspection) {
	found := inspection.Identifiers(rows)
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	_, _ = fmt.Fprintf(out, "%d of %d mapped identifiers have inspection rows\n", len(ids)-len(missing), len(ids))
	for _, id := range missing {
		_, _ = fmt.Fprintf(out, "  missing: %s\n", id)
	}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}

func init() {
	inspectCmd.Flags().Bool("coverage", false, "check registry coverage of every mapped identifier")
	rootCmd.AddCommand(inspectCmd)
}

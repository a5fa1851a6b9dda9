package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-risk/internal/loader"
	"github.com/sells-group/inspection-risk/internal/resolve"
	"github.com/sells-group/inspection-risk/internal/service"
)

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List order restaurants the mapping cannot resolve",
	Long:  "Loads the order export and the restaurant mapping and lists every distinct restaurant name that resolves to no identifier, with its order count and revenue.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		base, err := service.FileBase(cfg.Orders.CSVPath, cfg.Mapping.Path)(ctx)
		if err != nil {
			return err
		}

		stats := loader.Restaurants(base.Orders)
		names := make([]string, len(stats))
		for i, s := range stats {
			names[i] = s.RestaurantName
		}
		unresolved := base.Matcher.Unmatched(names)

		formatUnmatched(cmd.OutOrStdout(), stats, unresolved, base.Matcher)
		return nil
	},
}

// formatUnmatched writes unresolved restaurants, highest revenue first,
// followed by a match-rate line.
func formatUnmatched(out io.Writer, stats []loader.RestaurantStats, unresolved []string, m *resolve.Matcher) {
	missing := make(map[string]bool, len(unresolved))
	for _, name := range unresolved {
		missing[name] = true
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RESTAURANT\tCUISINE\tORDERS\tREVENUE")
	_, _ = fmt.Fprintln(w, "----------\t-------\t------\t-------")
	for _, s := range stats {
		if !missing[s.RestaurantName] {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\n", s.RestaurantName, s.Cuisine, s.OrderCount, s.TotalRevenue)
	}
	_ = w.Flush()

	names := make([]string, len(stats))
	for i, s := range stats {
		names[i] = s.RestaurantName
	}
	_, _ = fmt.Fprintf(out, "\n%d of %d restaurants matched (%d mapping entries)\n",
		m.MatchedCount(names), len(stats), m.Len())
}

func init() {
	rootCmd.AddCommand(unmatchedCmd)
}

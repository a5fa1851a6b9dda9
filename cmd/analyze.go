package main

import (
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-risk/internal/analytics"
)

// metrics maps metric names to the analyzer call that computes them.
var metrics = map[string]func(a *analytics.Analyzer, topN int) any{
	"rodent-orders":     func(a *analytics.Analyzer, _ int) any { return a.RodentOrders() },
	"revenue-by-grade":  func(a *analytics.Analyzer, _ int) any { return a.RevenueByGrade() },
	"revenue-at-risk":   func(a *analytics.Analyzer, _ int) any { return a.RevenueAtRisk() },
	"borough-breakdown": func(a *analytics.Analyzer, _ int) any { return a.BoroughBreakdown() },
	"watchlist":         func(a *analytics.Analyzer, n int) any { return a.Watchlist(n) },
	"summary":           func(a *analytics.Analyzer, _ int) any { return a.Summary() },
	"health":            func(a *analytics.Analyzer, _ int) any { return a.Health() },
}

func metricNames() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [metric]",
	Short: "Print one analytics metric as JSON",
	Long:  "Computes a metric for the requested window and prints it as JSON. Metrics: " + strings.Join(metricNames(), ", ") + ". Defaults to summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		name := "summary"
		if len(args) == 1 {
			name = args[0]
		}
		metric, ok := metrics[name]
		if !ok {
			return eris.Errorf("analyze: unknown metric %q (want one of %s)", name, strings.Join(metricNames(), ", "))
		}

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days == 0 {
			days = cfg.Analytics.DefaultDays
		}
		if err := cfg.CheckWindow(days); err != nil {
			return err
		}
		topN, _ := cmd.Flags().GetInt("top-n")
		if topN == 0 {
			topN = cfg.Analytics.WatchlistSize
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Cache.Get(ctx, days)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		return writeJSON(cmd.OutOrStdout(), metric(a, topN))
	},
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	analyzeCmd.Flags().Int("days", 0, "inspection window in days, one of analytics.allowed_windows (default from config)")
	analyzeCmd.Flags().Int("top-n", 0, "watchlist size (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

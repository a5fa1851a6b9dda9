package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-risk/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the analytics workbook for a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = report.Filename(days)
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Cache.Get(ctx, days)
		if err != nil {
			return eris.Wrap(err, "report")
		}
		opts := report.Options{Days: days, WatchlistSize: cfg.Analytics.WatchlistSize}
		if err := report.Save(out, a, opts); err != nil {
			return err
		}

		zap.L().Info("report written", zap.String("path", out), zap.Int("days", days))
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	reportCmd.Flags().Int("days", 0, "inspection window in days, one of analytics.allowed_windows (default from config)")
	reportCmd.Flags().String("out", "", "output path (default inspection_risk_report_<days>days.xlsx)")
	rootCmd.AddCommand(reportCmd)
}

package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/inspection-risk/internal/config"
	"github.com/sells-group/inspection-risk/internal/server"
	"github.com/sells-group/inspection-risk/internal/service"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if mins := cfg.Cache.RefreshIntervalMins; mins > 0 {
			r := service.NewRefresher(env.Source, env.Cache, cfg.Analytics.AllowedWindows, time.Duration(mins)*time.Minute)
			go r.Run(ctx)
		}

		srv := server.New(env.Cache, serverOptions(cfg))
		port := resolvePort(servePort, cfg.Server.Port)
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
	},
}

func serverOptions(c *config.Config) server.Options {
	return server.Options{
		DefaultDays:    c.Analytics.DefaultDays,
		AllowedWindows: c.Analytics.AllowedWindows,
		WatchlistSize:  c.Analytics.WatchlistSize,
		CORSOrigins:    c.Server.CORSOrigins,
	}
}

// resolvePort prefers the flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

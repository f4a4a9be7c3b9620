package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mmynk/flatlease/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, unless disabled, the sweep scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.bus.Start(ctx)
			if cfg.SchedulerEnabled {
				a.scheduler.Start(ctx)
				defer a.scheduler.Stop()
			}

			return server.Run(ctx, server.Config{
				Addr:     cfg.Addr(),
				Services: a.services,
				Sweeper:  a.scheduler,
				Stream:   a.stream,
				Metrics:  a.metrics,

				AllowedOrigins: cfg.AllowedOrigins,
			})
		},
	}
}

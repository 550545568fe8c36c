package main

import (
	"os"
	"os/signal"
	"syscall"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.RestoreSnapshot(ctx); err != nil {
				log.Error().Err(err).Msg("Error restoring index snapshot, starting empty")
			}

			return server.New(a.svc, cfg.Server).Start(ctx)
		},
	}
}

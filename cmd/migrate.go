package main

import (
	"errors"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/db"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCmd(cfg *config.Config) *cobra.Command {
	var drop bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the document ledger tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is not set")
			}

			dbClient, err := db.ConnectDB(&cfg.Database)
			if err != nil {
				return err
			}
			dbInstance := db.NewDB(dbClient, cfg.Database.Debug)
			defer dbInstance.Close()

			if drop {
				if err := db.DropDocuments(cmd.Context(), dbInstance); err != nil {
					return err
				}
				log.Info().Msg("Dropped ledger tables")
			}
			if err := db.InitDB(cmd.Context(), dbInstance); err != nil {
				return err
			}
			log.Info().Msg("Ledger tables are ready")
			return nil
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "drop existing tables first")
	return cmd
}

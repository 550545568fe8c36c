package main

import (
	"errors"
	"os"
	"time"

	"knowledge-scout/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const configFilePath = "./configs/config.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("Command failed")
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        = new(config.Config)
	)

	root := &cobra.Command{
		Use:           "knowledge-scout",
		Short:         "Upload a document and ask questions about it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			loaded, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			*cfg = *loaded

			setupLogger(cfg.Log)
			log.Debug().Interface("config", redacted(cfg)).Msg("Loaded config")
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", configFilePath, "config file")

	root.AddCommand(newServeCmd(cfg), newAskCmd(cfg), newMigrateCmd(cfg))
	return root
}

func setupLogger(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
}

// redacted returns a copy of cfg that is safe to log.
func redacted(cfg *config.Config) config.Config {
	c := *cfg
	if c.LLM.Key != "" {
		c.LLM.Key = "***"
	}
	if c.EmbedLLM.Key != "" {
		c.EmbedLLM.Key = "***"
	}
	if c.RAG.EncryptionKey != "" {
		c.RAG.EncryptionKey = "***"
	}
	if c.Database.DSN != "" {
		c.Database.DSN = "***"
	}
	return c
}

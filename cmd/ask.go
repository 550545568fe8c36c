package main

import (
	"fmt"
	"os"

	"knowledge-scout/internal/config"
	"knowledge-scout/internal/helper"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newAskCmd(cfg *config.Config) *cobra.Command {
	var filePath, question string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Index one document and answer a question about it",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", filePath, err)
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.svc.Ingest(cmd.Context(), filePath, data); err != nil {
				return err
			}

			answer, err := a.svc.Ask(cmd.Context(), question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Fprintf(out, "%s\n\n", question)

			log.Info().Msg("Source: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			helper.PrettyPrint(out, answer.Sources)

			log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
			fmt.Fprintf(out, "%s\n\n", answer.Text)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "path to the document file")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question to be answered")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("question")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/yangwenmai/pdfquiz/internal/config"
	"github.com/yangwenmai/pdfquiz/internal/logging"
)

var extractCmd = &cobra.Command{
	Use:   "extract FILE",
	Short: "Extract text from a PDF with the configured extractor and print it",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := config.Read(envFiles...)
	if err == nil {
		err = cfg.ValidateExtractor()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Format:      "console",
		Output:      cmd.ErrOrStderr(),
		ServiceName: "pdfquiz",
	})

	extractor := buildExtractor(cfg, afero.NewOsFs(), log)
	text, err := extractor.Extract(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("extract %s: %w", args[0], err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	log.Info().Int("content_length", len([]rune(text))).Msg("extracted")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-composer/internal/pipeline"
	"github.com/jonathan/report-composer/internal/rendering"
)

var coverCmd = &cobra.Command{
	Use:   "cover",
	Short: "Render the cover page of a candidate as PNG",
	Long:  "Renders the cover page (candidate, company, tracking number and the status of every included service) from a session file.",
	RunE:  runCover,
}

var (
	coverSession string
	coverOrder   string
	coverCatalog string
	coverOutput  string
)

func init() {
	coverCmd.Flags().StringVarP(&coverSession, "session", "s", "", "Path to session JSON file (required)")
	coverCmd.Flags().StringVar(&coverOrder, "order", "", "Path to order JSON file (defaults to fetching from the backend)")
	coverCmd.Flags().StringVar(&coverCatalog, "catalog", "", "Path to service catalog JSON file (optional)")
	coverCmd.Flags().StringVarP(&coverOutput, "out", "o", "", "Path to output PNG file (required)")

	if err := coverCmd.MarkFlagRequired("session"); err != nil {
		panic(fmt.Sprintf("failed to mark session flag as required: %v", err))
	}
	if err := coverCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	rootCmd.AddCommand(coverCmd)
}

func runCover(_ *cobra.Command, _ []string) error {
	in, err := openSessionInput(context.Background(), appConfig, coverSession, coverOrder, coverCatalog, false)
	if err != nil {
		return err
	}

	opts := engineOptions(appConfig)
	s := in.session
	data := pipeline.CoverData(s.Order, s.Tracker.Candidate(), s.Tracker.Entries(), s.Catalog, nowFunc())

	png, err := rendering.RenderCoverPNG(data, opts.Cover)
	if err != nil {
		return err
	}
	if err := os.WriteFile(coverOutput, png, 0644); err != nil {
		return fmt.Errorf("failed to write cover: %w", err)
	}

	_, _ = fmt.Fprintf(rootCmd.OutOrStdout(), "Cover written to %s (%d services)\n", coverOutput, len(data.Services))
	return nil
}

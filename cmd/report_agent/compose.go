package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-composer/internal/observability"
	"github.com/jonathan/report-composer/internal/pipeline"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose the combined report of a candidate as PDF",
	Long: `Composes the combined report: the cover page followed by the result file of every
included service, in enrollment order. Results that cannot be fetched or parsed are
skipped and listed.`,
	RunE: runCompose,
}

var (
	composeSession string
	composeOrder   string
	composeCatalog string
	composeOutput  string
)

// nowFunc stamps the cover date; tests pin it.
var nowFunc = time.Now

func init() {
	composeCmd.Flags().StringVarP(&composeSession, "session", "s", "", "Path to session JSON file (required)")
	composeCmd.Flags().StringVar(&composeOrder, "order", "", "Path to order JSON file (defaults to fetching from the backend)")
	composeCmd.Flags().StringVar(&composeCatalog, "catalog", "", "Path to service catalog JSON file (optional)")
	composeCmd.Flags().StringVarP(&composeOutput, "out", "o", "", "Path to output PDF file (required)")

	if err := composeCmd.MarkFlagRequired("session"); err != nil {
		panic(fmt.Sprintf("failed to mark session flag as required: %v", err))
	}
	if err := composeCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	rootCmd.AddCommand(composeCmd)
}

func runCompose(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	in, err := openSessionInput(ctx, appConfig, composeSession, composeOrder, composeCatalog, false)
	if err != nil {
		return err
	}

	opts := engineOptions(appConfig)
	opts.Now = nowFunc
	engine := pipeline.New(in.backend, opts)

	out := rootCmd.OutOrStdout()
	if appConfig.Verbose {
		observability.NewPrinter(out).PrintCandidate(in.session.Tracker.Candidate(), in.session.Tracker.Entries())
	}

	report, err := engine.Compose(ctx, in.session, nil)
	if err != nil {
		return err
	}
	if err := os.WriteFile(composeOutput, report.Document.Data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if appConfig.Verbose {
		observability.NewPrinter(out).PrintDocument(report.Document)
	}
	_, _ = fmt.Fprintf(out, "Report written to %s (%d pages)\n", composeOutput, report.Document.PageCount)
	if skipped := report.Document.SkippedLabels(); len(skipped) > 0 {
		_, _ = fmt.Fprintf(out, "Skipped: %s\n", strings.Join(skipped, ", "))
	}
	return nil
}

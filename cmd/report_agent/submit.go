package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/db"
	"github.com/jonathan/report-composer/internal/observability"
	"github.com/jonathan/report-composer/internal/pipeline"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a candidate's results and combined report to the backend",
	Long: `Replays a session file and uploads every service with a new file or changed note or
status, in enrollment order. With "with_summary" set in the session the combined report
is composed first and uploaded last. Upload stops at the first failure.`,
	RunE: runSubmit,
}

var (
	submitSession     string
	submitConcurrency int
	submitNoRecord    bool
)

func init() {
	submitCmd.Flags().StringVarP(&submitSession, "session", "s", "", "Path to session JSON file (required)")
	submitCmd.Flags().IntVar(&submitConcurrency, "concurrency", 0, "Parallel service uploads (overrides config; 1 is sequential)")
	submitCmd.Flags().BoolVar(&submitNoRecord, "no-record", false, "Do not record the attempt in the database")

	if err := submitCmd.MarkFlagRequired("session"); err != nil {
		panic(fmt.Sprintf("failed to mark session flag as required: %v", err))
	}

	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg := appConfig
	if cmd.Flags().Changed("concurrency") {
		cfg.UploadConcurrency = submitConcurrency
	}

	in, err := openSessionInput(ctx, cfg, submitSession, "", "", true)
	if err != nil {
		return err
	}
	overall, err := in.file.SummaryStatus()
	if err != nil {
		return err
	}

	opts := engineOptions(cfg)
	if cfg.DatabaseURL != "" && !submitNoRecord {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()
		opts.Recorder = database
	}

	out := rootCmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	if cfg.Verbose {
		printer.PrintCandidate(in.session.Tracker.Candidate(), in.session.Tracker.Entries())
	}

	engine := pipeline.New(in.backend, opts)
	res, err := engine.Submit(ctx, in.session, pipeline.SubmitOptions{
		WithSummary:   in.file.WithSummary,
		SummaryNotes:  in.file.SummaryNotes,
		OverallStatus: overall,
		OnProgress: func(ev pipeline.ProgressEvent) {
			logger.Info(ev.Message, zap.String("step", ev.Step), zap.Int("percent", ev.Percent))
		},
	})
	if res != nil {
		if cfg.Verbose && res.Report != nil {
			printer.PrintDocument(res.Report.Document)
		}
		printer.PrintOutcome(res.Submission)
	}
	return err
}

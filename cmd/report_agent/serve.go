package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/report-composer/internal/config"
	"github.com/jonathan/report-composer/internal/db"
	"github.com/jonathan/report-composer/internal/server"
	"github.com/jonathan/report-composer/internal/server/ratelimit"
)

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that composes report previews and submits candidate results.
When a database URL is configured every submission attempt is recorded.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg := appConfig
	if cmd.Flags().Changed("port") {
		cfg.Port = servePort
	}

	client, err := newBackendClient(cfg)
	if err != nil {
		return err
	}

	apiKey, err := config.NewAPIKeyConfig()
	if err != nil {
		return fmt.Errorf("failed to create API key config: %w", err)
	}
	if !apiKey.Enabled() {
		logger.Warn("SERVER_API_KEY_HASH is not set; API requests are not authenticated")
	}

	var store server.SubmissionStore
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		if serveMigrate {
			if err := database.Migrate(ctx); err != nil {
				return err
			}
		}
		store = database
	} else {
		logger.Info("No database configured; submissions are not recorded")
	}

	srv := server.New(server.Config{
		Port:           cfg.Port,
		MaxUploadBytes: cfg.MaxUploadBytes,
		APIKey:         apiKey,
		RateLimit:      ratelimit.LoadConfig(),
		Pipeline:       engineOptions(cfg),
		Logger:         logger,
	}, client, store)

	logger.Info("Serving", zap.Int("port", cfg.Port), zap.String("backend", cfg.BackendURL))
	return srv.Start()
}

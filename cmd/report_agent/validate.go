package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-composer/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON file against a JSON schema",
	Long:  "Validates a JSON file against a JSON schema file. Exits with code 1 on validation failure.",
	RunE:  runValidate,
}

var validateSessionCmd = &cobra.Command{
	Use:   "validate-session <session.json>",
	Short: "Validate a session file against the built-in session schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidateSession,
}

var (
	validateSchema string
	validateJSON   string
)

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Path to JSON schema file (required)")
	validateCmd.Flags().StringVar(&validateJSON, "json", "", "Path to JSON file to validate (required)")

	if err := validateCmd.MarkFlagRequired("schema"); err != nil {
		panic(fmt.Sprintf("failed to mark schema flag as required: %v", err))
	}
	if err := validateCmd.MarkFlagRequired("json"); err != nil {
		panic(fmt.Sprintf("failed to mark json flag as required: %v", err))
	}

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(validateSessionCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	return reportValidation(schemas.ValidateJSON(validateSchema, validateJSON))
}

func runValidateSession(_ *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read session file: %w", err)
	}
	return reportValidation(schemas.ValidateSession(data))
}

// reportValidation prints the outcome of a schema check.
func reportValidation(err error) error {
	out := rootCmd.OutOrStdout()
	var verr *schemas.ValidationError
	switch {
	case err == nil:
		_, _ = fmt.Fprintln(out, "Validation passed")
		return nil
	case errors.As(err, &verr):
		_, _ = fmt.Fprintln(out, "Validation failed:")
		for _, fe := range verr.Errors {
			_, _ = fmt.Fprintf(out, "  - %s: %s\n", fe.Field, fe.Message)
		}
		return verr
	default:
		return err
	}
}

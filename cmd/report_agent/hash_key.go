package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-composer/internal/config"
)

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key",
	Short: "Print the bcrypt hash of an API key for SERVER_API_KEY_HASH",
	Long:  "Reads an API key from --key or the first line of standard input and prints its bcrypt hash, applying API_KEY_PEPPER and BCRYPT_COST.",
	RunE:  runHashKey,
}

var hashKeyValue string

func init() {
	hashKeyCmd.Flags().StringVar(&hashKeyValue, "key", "", "API key to hash (read from stdin when omitted)")
	rootCmd.AddCommand(hashKeyCmd)
}

func runHashKey(cmd *cobra.Command, _ []string) error {
	key := hashKeyValue
	if key == "" {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		key = strings.TrimSpace(line)
	}
	if key == "" {
		return fmt.Errorf("API key is empty")
	}

	cfg, err := config.NewAPIKeyConfig()
	if err != nil {
		return err
	}
	hash, err := cfg.HashKey(key)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

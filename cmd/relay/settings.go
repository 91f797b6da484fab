package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/logging"
)

func addCycleFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()

	cmd.Flags().String("base-url", defaults.BaseURL, "Forum base URL")
	cmd.Flags().Int("max-topics", defaults.MaxTopics, "Topic links followed per cycle")
	cmd.Flags().Int("workers", defaults.TopicWorkers, "Topic pages fetched concurrently")
	cmd.Flags().Duration("timeout", defaults.Timeout, "Per-request timeout")
	cmd.Flags().Int("max-retries", defaults.MaxRetries, "Retries per request")
	cmd.Flags().Duration("pacing", defaults.PacingDelay, "Wait after every send attempt")
	cmd.Flags().String("ledger", defaults.LedgerBackend, "Ledger backend: memory or sqlite")
	cmd.Flags().String("ledger-path", defaults.LedgerPath, "Directory for the sqlite ledger")
	cmd.Flags().Int("ledger-max", defaults.LedgerMaxEntries, "Bound each in-memory ledger set (0 keeps everything)")
	cmd.Flags().String("journal", "", "Append delivered files to this journal")
	cmd.Flags().String("journal-format", defaults.JournalFormat, "Journal format: csv, json, or dual")
}

// loadConfig layers flags over the file and environment settings. Only flags
// set on the command line override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFile, _ := cmd.Flags().GetString("env-file")

	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("max-topics") {
		cfg.MaxTopics, _ = flags.GetInt("max-topics")
	}
	if flags.Changed("workers") {
		cfg.TopicWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("pacing") {
		cfg.PacingDelay, _ = flags.GetDuration("pacing")
	}
	if flags.Changed("ledger") {
		backend, _ := flags.GetString("ledger")
		cfg.LedgerBackend = strings.ToLower(backend)
	}
	if flags.Changed("ledger-path") {
		cfg.LedgerPath, _ = flags.GetString("ledger-path")
	}
	if flags.Changed("ledger-max") {
		cfg.LedgerMaxEntries, _ = flags.GetInt("ledger-max")
	}
	if flags.Changed("journal") {
		cfg.JournalFile, _ = flags.GetString("journal")
	}
	if flags.Changed("journal-format") {
		format, _ := flags.GetString("journal-format")
		cfg.JournalFormat = strings.ToLower(format)
	}
	if flags.Lookup("interval") != nil && flags.Changed("interval") {
		cfg.PollInterval, _ = flags.GetDuration("interval")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		cfg.HealthAddr, _ = flags.GetString("addr")
	}
	if verbose, _ := flags.GetBool("verbose"); verbose {
		cfg.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg *config.Config) {
	logger, level := logging.New(os.Stdout, cfg.Verbose, cfg.BotToken)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())
}

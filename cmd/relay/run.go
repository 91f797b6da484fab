package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/metrics"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the forum and relay new files until interrupted",
		Long: `Run starts the health server on --addr (or :$PORT), tells the bot owner the
relay is up and then repeats crawl cycles every --interval until SIGINT or
SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: runRelayCmd,
	}

	defaults := config.DefaultConfig()
	addCycleFlags(cmd)
	cmd.Flags().Duration("interval", defaults.PollInterval, "Time between crawl cycles")
	cmd.Flags().String("addr", defaults.HealthAddr, "Health and metrics listen address")

	return cmd
}

func runRelayCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.HealthAddr != "" {
		stopHealth := startHealthServer(cfg.HealthAddr, m.Registry)
		defer stopHealth()
	}

	r, err := newRelay(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer r.close()

	slog.Info("starting relay",
		slog.String("base_url", cfg.BaseURL),
		slog.Duration("interval", cfg.PollInterval),
		slog.Duration("pacing", cfg.PacingDelay),
		slog.String("ledger", cfg.LedgerBackend),
	)
	if err := r.client.Announce(ctx, cfg.PollInterval); err != nil {
		slog.Warn("startup notice failed", slog.Any("error", err))
	}

	if err := r.poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown signal received, relay stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/ledger"
	"github.com/aluiziolira/go-torrent-relay/metrics"
	"github.com/aluiziolira/go-torrent-relay/pipeline"
	"github.com/aluiziolira/go-torrent-relay/poller"
	"github.com/aluiziolira/go-torrent-relay/scraper"
	"github.com/aluiziolira/go-torrent-relay/telegram"
)

// relay holds the wired components for one process.
type relay struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	fetcher *scraper.Fetcher
	ledger  ledger.Ledger
	journal pipeline.OutputWriter
	client  *telegram.Client
	poller  *poller.Poller
}

func newRelay(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*relay, error) {
	if err := cfg.ValidateDelivery(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	r := &relay{cfg: cfg, metrics: m}

	fetcher, err := scraper.NewFetcher(cfg, r.metrics)
	if err != nil {
		return nil, fmt.Errorf("initialising fetcher: %w", err)
	}
	r.fetcher = fetcher

	r.client, err = telegram.New(cfg.BotToken, cfg.ChannelID, cfg.OwnerID)
	if err != nil {
		return nil, err
	}
	slog.Info("authorised", slog.String("bot", r.client.Name()))

	r.ledger, err = ledger.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	if cfg.JournalFile != "" {
		r.journal, err = pipeline.NewJournal(cfg.JournalFormat, cfg.JournalFile)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("creating journal: %w", err)
		}
	}

	pacer := pipeline.NewPacer(cfg, r.fetcher, r.client, r.ledger, r.journal, r.metrics)
	r.poller, err = poller.New(cfg, r.fetcher, pacer, r.ledger, r.metrics)
	if err != nil {
		r.close()
		return nil, err
	}
	return r, nil
}

func (r *relay) close() {
	if r.journal != nil {
		if err := r.journal.Validate(); err != nil {
			slog.Warn("journal validation failed", slog.Any("error", err))
		}
		if err := r.journal.Close(); err != nil {
			slog.Error("close journal", slog.Any("error", err))
		}
	}
	if r.ledger != nil {
		if err := r.ledger.Close(); err != nil {
			slog.Error("close ledger", slog.Any("error", err))
		}
	}
}

// Package poller runs the crawl, dedup and deliver cycle on a fixed interval.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/ledger"
	"github.com/aluiziolira/go-torrent-relay/metrics"
	"github.com/aluiziolira/go-torrent-relay/models"
	"github.com/aluiziolira/go-torrent-relay/parser"
	"github.com/aluiziolira/go-torrent-relay/pipeline"
	"github.com/aluiziolira/go-torrent-relay/scraper"
)

// Deliverer hands a listing to the downstream channel.
type Deliverer interface {
	Deliver(ctx context.Context, listing models.Listing) []models.DeliveryOutcome
}

// Poller owns the loop. Only one cycle runs at a time.
type Poller struct {
	cfg     *config.Config
	base    *url.URL
	fetcher pipeline.Fetcher
	pacer   Deliverer
	ledger  ledger.Ledger
	metrics *metrics.Metrics

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// New builds a poller. l is only read for stats and may be nil.
func New(cfg *config.Config, f pipeline.Fetcher, d Deliverer, l ledger.Ledger, m *metrics.Metrics) (*Poller, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Poller{
		cfg:     cfg,
		base:    base,
		fetcher: f,
		pacer:   d,
		ledger:  l,
		metrics: m,
		sleep:   scraper.Sleep,
		now:     time.Now,
	}, nil
}

// Run repeats cycles until ctx is cancelled, sleeping PollInterval between
// them. It returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := p.RunCycle(ctx)
		logCycle(result)

		if err := p.sleep(ctx, p.cfg.PollInterval); err != nil {
			return err
		}
	}
}

// RunCycle performs one crawl and delivery pass. A panic inside the cycle is
// recovered and reported in the result.
func (p *Poller) RunCycle(ctx context.Context) (result models.CycleResult) {
	result.StartTime = p.now()
	result.ErrorsByType = make(map[string]int)

	defer func() {
		if r := recover(); r != nil {
			result.RecoveredPanic = r
			slog.Error("cycle panicked", slog.Any("panic", r))
		}
		result.EndTime = p.now()
		p.metrics.ObserveCycle(result.Duration())
		p.reportLedger(ctx)
	}()

	listings := p.Crawl(ctx, &result)
	for _, listing := range listings {
		if ctx.Err() != nil {
			break
		}
		result.Add(p.pacer.Deliver(ctx, listing))
	}
	return result
}

// Crawl fetches the homepage and every discovered topic page. It returns one
// listing per topic that parsed cleanly, in homepage order, including topics
// with no files so they can be marked seen. Failed topics are left out and
// recorded in result.
func (p *Poller) Crawl(ctx context.Context, result *models.CycleResult) []models.Listing {
	body, err := p.fetcher.Fetch(ctx, scraper.PhaseHomepage, p.base.String())
	if err != nil {
		p.fail(result, "homepage", p.base.String(), err)
		result.HomepageErr = err
		return nil
	}

	topics, err := parser.ParseHomepage(p.base, body, p.cfg.HomepageRules())
	if err != nil {
		p.fail(result, "homepage", p.base.String(), err)
		result.HomepageErr = err
		return nil
	}
	result.TopicCount = len(topics)
	slog.Debug("discovered topics", slog.Int("count", len(topics)))

	files := make([][]models.File, len(topics))
	errs := make([]error, len(topics))

	var g errgroup.Group
	g.SetLimit(max(p.cfg.TopicWorkers, 1))
	for i, topic := range topics {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("topic %s panicked: %v", topic, r)
					err = errs[i]
				}
			}()
			files[i], errs[i] = p.fetchTopic(ctx, topic)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Error("topic worker panicked", slog.Any("error", err))
	}

	listings := make([]models.Listing, 0, len(topics))
	for i, topic := range topics {
		if errs[i] != nil {
			p.fail(result, "topic", topic, errs[i])
			result.FailedTopics = append(result.FailedTopics, topic)
			continue
		}
		listing, ok := parser.NewListing(topic, files[i])
		if ok {
			result.ListingCount++
		} else {
			listing = models.Listing{TopicURL: topic}
		}
		listings = append(listings, listing)
	}
	return listings
}

func (p *Poller) fetchTopic(ctx context.Context, topic string) ([]models.File, error) {
	body, err := p.fetcher.Fetch(ctx, scraper.PhaseTopic, topic)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.ParseTopicPage(topic, body, p.cfg.TopicRules())
	if err != nil {
		return nil, err
	}

	files := make([]models.File, 0, len(parsed))
	for i := range parsed {
		if err := parser.ValidateFile(&parsed[i]); err != nil {
			slog.Debug("dropping file", slog.String("topic", topic), slog.Any("error", err))
			continue
		}
		files = append(files, parsed[i])
	}
	return files, nil
}

func (p *Poller) fail(result *models.CycleResult, stage, target string, err error) {
	label := errorLabel(err)
	result.ErrorsByType[label]++
	if label == "parse" {
		p.metrics.IncError(label)
	}
	slog.Warn("crawl step failed",
		slog.String("stage", stage),
		slog.String("url", target),
		slog.String("category", label),
		slog.Any("error", err),
	)
}

func (p *Poller) reportLedger(ctx context.Context) {
	if p.ledger == nil {
		return
	}
	stats, err := p.ledger.Stats(context.WithoutCancel(ctx))
	if err != nil {
		slog.Warn("ledger stats unavailable", slog.Any("error", err))
		return
	}
	p.metrics.SetLedgerEntries(stats.SeenTopics, stats.PostedLinks)
}

func errorLabel(err error) string {
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	return scraper.ErrorType(err)
}

func logCycle(result models.CycleResult) {
	attrs := []any{
		slog.Int("topics", result.TopicCount),
		slog.Int("listings", result.ListingCount),
		slog.Int("delivered", result.Delivered),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed_topics", len(result.FailedTopics)),
		slog.Duration("duration", result.Duration()),
	}
	if len(result.ErrorsByType) > 0 {
		attrs = append(attrs, slog.Any("errors", result.ErrorsByType))
	}
	slog.Info("cycle complete", attrs...)
}

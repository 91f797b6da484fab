// Package pipeline delivers parsed listings to the downstream channel at a
// fixed pace and journals what was delivered.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/ledger"
	"github.com/aluiziolira/go-torrent-relay/metrics"
	"github.com/aluiziolira/go-torrent-relay/models"
	"github.com/aluiziolira/go-torrent-relay/parser"
	"github.com/aluiziolira/go-torrent-relay/scraper"
)

// Fetcher retrieves raw bytes for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, phase, rawURL string) ([]byte, error)
}

// Channel is the downstream destination for delivered files.
type Channel interface {
	SendDocument(ctx context.Context, doc models.Document) error
}

// DeliveryError reports a file the channel did not accept.
type DeliveryError struct {
	Title      string
	RetryAfter time.Duration
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %q: %v", e.Title, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// retryAfterer is implemented by channel errors carrying a server-imposed wait.
type retryAfterer interface {
	RetryAfter() time.Duration
}

// Pacer sends new files one at a time and waits PacingDelay after every
// send attempt. It is not safe for concurrent use.
type Pacer struct {
	fetcher Fetcher
	channel Channel
	ledger  ledger.Ledger
	journal OutputWriter
	metrics *metrics.Metrics

	delay time.Duration
	tag   string

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// NewPacer wires a pacer. journal and m may be nil.
func NewPacer(cfg *config.Config, f Fetcher, ch Channel, l ledger.Ledger, journal OutputWriter, m *metrics.Metrics) *Pacer {
	return &Pacer{
		fetcher: f,
		channel: ch,
		ledger:  l,
		journal: journal,
		metrics: m,
		delay:   cfg.PacingDelay,
		tag:     cfg.CaptionTag,
		sleep:   scraper.Sleep,
		now:     time.Now,
	}
}

// Deliver sends every file of listing that the ledger has not seen, in file
// order, and returns one outcome per file. A link repeated within the listing
// is sent once. A topic already seen with no new files is skipped without any
// network access. The topic is recorded as seen after the pass whatever the
// individual outcomes.
func (p *Pacer) Deliver(ctx context.Context, listing models.Listing) []models.DeliveryOutcome {
	outcomes := make([]models.DeliveryOutcome, len(listing.Files))
	pending := make([]int, 0, len(listing.Files))
	queued := make(map[string]struct{}, len(listing.Files))

	for i, f := range listing.Files {
		outcomes[i].File = f
		if _, dup := queued[f.Link]; dup {
			outcomes[i].Kind = models.SkippedAlreadyHandled
			continue
		}
		isNew, err := p.ledger.IsNewFile(ctx, f.Link)
		if err != nil {
			outcomes[i].Kind = models.FailedRetryable
			outcomes[i].Err = err
			slog.Error("ledger lookup failed", slog.String("link", f.Link), slog.Any("error", err))
			continue
		}
		if !isNew {
			outcomes[i].Kind = models.SkippedAlreadyHandled
			continue
		}
		queued[f.Link] = struct{}{}
		pending = append(pending, i)
	}

	seen, err := p.ledger.IsSeenTopic(ctx, listing.TopicURL)
	if err != nil {
		slog.Error("ledger lookup failed", slog.String("topic", listing.TopicURL), slog.Any("error", err))
	}
	if seen && len(pending) == 0 {
		p.count(outcomes)
		return outcomes
	}

	for _, i := range pending {
		outcomes[i] = p.deliverOne(ctx, listing.TopicURL, listing.Files[i])
	}

	if err := p.ledger.RecordSeenTopic(ctx, listing.TopicURL); err != nil {
		slog.Error("record seen topic failed", slog.String("topic", listing.TopicURL), slog.Any("error", err))
	}
	p.count(outcomes)
	return outcomes
}

func (p *Pacer) deliverOne(ctx context.Context, topicURL string, f models.File) models.DeliveryOutcome {
	if err := ctx.Err(); err != nil {
		return models.DeliveryOutcome{File: f, Kind: models.FailedRetryable, Err: err}
	}

	content, err := p.fetcher.Fetch(ctx, scraper.PhaseFile, f.Link)
	if err != nil {
		slog.Error("failed to fetch torrent",
			slog.String("title", f.Title),
			slog.String("link", f.Link),
			slog.Any("error", err),
		)
		return models.DeliveryOutcome{File: f, Kind: models.FailedRetryable, Err: err}
	}

	doc := models.Document{
		FileName: parser.FileName(f.Title),
		Caption:  parser.Caption(f, p.tag),
		Content:  content,
	}

	wait := p.delay
	outcome := models.DeliveryOutcome{File: f, Kind: models.Delivered}
	if err := p.channel.SendDocument(ctx, doc); err != nil {
		derr := &DeliveryError{Title: f.Title, Err: err}
		var ra retryAfterer
		if errors.As(err, &ra) {
			derr.RetryAfter = ra.RetryAfter()
			if derr.RetryAfter > wait {
				wait = derr.RetryAfter
			}
		}
		p.metrics.IncError("delivery")
		slog.Error("failed to send torrent",
			slog.String("title", f.Title),
			slog.Duration("retry_after", derr.RetryAfter),
			slog.Any("error", err),
		)
		outcome = models.DeliveryOutcome{File: f, Kind: models.FailedRetryable, Err: derr}
	} else {
		if err := p.ledger.RecordDelivered(ctx, f.Link); err != nil {
			outcome.Err = err
			slog.Error("record delivered link failed", slog.String("link", f.Link), slog.Any("error", err))
		}
		p.appendJournal(topicURL, f, doc.FileName)
		slog.Info("posted", slog.String("title", f.Title), slog.String("size", f.Size))
	}

	if err := p.sleep(ctx, wait); err != nil {
		slog.Debug("pacing wait interrupted", slog.Any("error", err))
	}
	return outcome
}

func (p *Pacer) appendJournal(topicURL string, f models.File, fileName string) {
	if p.journal == nil {
		return
	}
	record := &models.DeliveryRecord{
		TopicURL:    topicURL,
		Title:       f.Title,
		Size:        f.Size,
		Link:        f.Link,
		FileName:    fileName,
		DeliveredAt: p.now().UTC(),
	}
	if err := p.journal.Write([]*models.DeliveryRecord{record}); err != nil {
		slog.Error("journal write failed", slog.String("link", f.Link), slog.Any("error", err))
	}
}

func (p *Pacer) count(outcomes []models.DeliveryOutcome) {
	for _, o := range outcomes {
		p.metrics.IncDelivery(o.Kind.String())
	}
}

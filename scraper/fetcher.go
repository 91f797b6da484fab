package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/metrics"
)

// Request phases, used as metric labels.
const (
	PhaseHomepage = "homepage"
	PhaseTopic    = "topic"
	PhaseFile     = "file"
)

// browserHeaders mimic a desktop browser navigation.
var browserHeaders = map[string]string{
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.9",
	"Cache-Control":             "max-age=0",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-User":            "?1",
}

// Fetcher retrieves pages and attachments through a colly collector that
// keeps cookies between requests and presents a browser-like profile.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	metrics   *metrics.Metrics
	referer   string
	sleep     func(context.Context, time.Duration) error
}

// NewFetcher builds a fetcher configured from cfg.
func NewFetcher(cfg *config.Config, m *metrics.Metrics) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	options := []colly.CollectorOption{colly.AllowURLRevisit()}
	if cfg.UserAgent != "" {
		options = append(options, colly.UserAgent(cfg.UserAgent))
	}
	collector := colly.NewCollector(options...)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.TopicWorkers,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Fetcher{
		cfg:       cfg,
		collector: collector,
		metrics:   m,
		referer:   parsed.Scheme + "://" + parsed.Host + "/",
		sleep:     Sleep,
	}, nil
}

// WithTransport swaps the HTTP transport; cookies are kept.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch returns the body at rawURL. Transient failures are retried with
// capped exponential backoff; the final failure is returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, phase, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}

		body, err := f.attempt(phase, rawURL)
		if err == nil {
			return body, nil
		}

		category := ErrorType(err)
		f.metrics.IncError(category)
		if attempt >= f.cfg.MaxRetries || !Retryable(err) {
			return nil, err
		}

		f.metrics.IncRetries()
		delay := f.backoff(attempt + 1)
		slog.Debug("retrying fetch",
			slog.String("url", rawURL),
			slog.String("category", category),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}
}

func (f *Fetcher) attempt(phase, rawURL string) ([]byte, error) {
	c := f.collector.Clone()
	if f.cfg.UserAgent == "" {
		extensions.RandomUserAgent(c)
	}
	c.OnRequest(func(r *colly.Request) {
		for key, value := range browserHeaders {
			r.Headers.Set(key, value)
		}
		if phase == PhaseHomepage {
			r.Headers.Set("Sec-Fetch-Site", "none")
		} else {
			r.Headers.Set("Sec-Fetch-Site", "same-origin")
			r.Headers.Set("Referer", f.referer)
		}
	})

	var (
		body   []byte
		status int
		cbErr  error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
			body = r.Body
		}
		cbErr = err
	})

	f.metrics.IncRequest(phase)
	start := time.Now()
	err := c.Visit(rawURL)
	f.metrics.ObserveDuration(time.Since(start))
	if err == nil {
		err = cbErr
	}

	if err != nil || status >= http.StatusBadRequest {
		return nil, &FetchError{URL: rawURL, Status: status, Err: classifyError(err, status, body)}
	}
	if status == http.StatusOK && isChallenge(body) {
		return nil, &FetchError{URL: rawURL, Status: status, Err: ErrChallenge{Err: fmt.Errorf("interstitial served with status %d", status)}}
	}
	return body, nil
}

// backoff follows base * 2^(attempt-1), capped at RetryBackoffMax.
func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

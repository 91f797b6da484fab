package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/ledger"
	"github.com/aluiziolira/go-torrent-relay/models"
	"github.com/aluiziolira/go-torrent-relay/pipeline"
	"github.com/aluiziolira/go-torrent-relay/scraper"
)

const (
	baseURL = "https://example.test"
	topicA  = baseURL + "/forums/topic/1-movie-a/"
	topicB  = baseURL + "/forums/topic/2-movie-b/"
	fileA   = baseURL + "/attachment/a.torrent"
)

const homepage = `<html><body>
<a href="/forums/topic/1-movie-a/">Movie A</a>
<a href="/forums/topic/2-movie-b/#comments">Movie B</a>
<a href="/forums/topic/1-movie-a/">Movie A again</a>
<a href="/about/">About</a>
</body></html>`

const topicPageA = `<html><body>
<a data-fileext="torrent" href="/attachment/a.torrent">www.1TamilMV Movie.Name.2024.torrent 1.2GB</a>
</body></html>`

const topicPageB = `<html><body><p>No attachments yet.</p></body></html>`

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	fail   map[string]error
	panics map[string]bool
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string]string{
			baseURL: homepage,
			topicA:  topicPageA,
			topicB:  topicPageB,
			fileA:   "d8:announce...e",
		},
		fail:   map[string]error{},
		panics: map[string]bool{},
		calls:  map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, phase string, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if phase == scraper.PhaseTopic && f.panics[rawURL] {
		panic("nil selection in " + rawURL)
	}
	if err := f.fail[rawURL]; err != nil {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, &scraper.FetchError{URL: rawURL, Status: 404, Err: scraper.ErrNotFound{Err: fmt.Errorf("missing %s", rawURL)}}
	}
	return []byte(body), nil
}

type fakeChannel struct {
	mu   sync.Mutex
	docs []models.Document
	err  error
}

func (c *fakeChannel) SendDocument(_ context.Context, doc models.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append(c.docs, doc)
	return c.err
}

type harness struct {
	poller  *Poller
	fetcher *fakeFetcher
	channel *fakeChannel
	ledger  ledger.Ledger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.PacingDelay = 0
	cfg.TopicWorkers = 2

	l, err := ledger.NewMemory(0)
	require.NoError(t, err)

	h := &harness{fetcher: newFakeFetcher(), channel: &fakeChannel{}, ledger: l}
	pacer := pipeline.NewPacer(cfg, h.fetcher, h.channel, l, nil, nil)
	h.poller, err = New(cfg, h.fetcher, pacer, l, nil)
	require.NoError(t, err)
	return h
}

func (h *harness) seen(t *testing.T, topic string) bool {
	t.Helper()
	ok, err := h.ledger.IsSeenTopic(context.Background(), topic)
	require.NoError(t, err)
	return ok
}

func (h *harness) posted(t *testing.T, link string) bool {
	t.Helper()
	isNew, err := h.ledger.IsNewFile(context.Background(), link)
	require.NoError(t, err)
	return !isNew
}

func TestRunCycleDeliversAndMarksTopicsSeen(t *testing.T) {
	h := newHarness(t)

	result := h.poller.RunCycle(context.Background())

	require.NoError(t, result.HomepageErr)
	assert.Equal(t, 2, result.TopicCount)
	assert.Equal(t, 1, result.ListingCount)
	assert.Equal(t, 1, result.Delivered)
	assert.Empty(t, result.FailedTopics)
	require.Len(t, h.channel.docs, 1)
	assert.Equal(t, "Movie.Name.2024.torrent", h.channel.docs[0].FileName)
	assert.Equal(t, "Movie.Name.2024\n📦 1.2GB\n#TamilMV", h.channel.docs[0].Caption)

	assert.True(t, h.seen(t, topicA))
	assert.True(t, h.seen(t, topicB))
	assert.True(t, h.posted(t, fileA))

	stats, err := h.ledger.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ledger.Stats{SeenTopics: 2, PostedLinks: 1}, stats)
}

func TestRunCycleSteadyStateSkipsFetches(t *testing.T) {
	h := newHarness(t)
	h.poller.RunCycle(context.Background())

	result := h.poller.RunCycle(context.Background())

	assert.Equal(t, 0, result.Delivered)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, h.channel.docs, 1)
	assert.Equal(t, 1, h.fetcher.calls[fileA], "file must not be refetched")
}

func TestRunCycleFailedSendLeavesLinkUnposted(t *testing.T) {
	h := newHarness(t)
	h.channel.err = errors.New("Bad Request")

	result := h.poller.RunCycle(context.Background())

	assert.Equal(t, 1, result.Failed)
	assert.False(t, h.posted(t, fileA))
	assert.True(t, h.seen(t, topicA))

	h.channel.err = nil
	result = h.poller.RunCycle(context.Background())
	assert.Equal(t, 1, result.Delivered)
	assert.True(t, h.posted(t, fileA))
}

func TestRunCycleIsolatesTopicFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.fail[topicB] = &scraper.FetchError{URL: topicB, Err: scraper.ErrTimeout{Err: context.DeadlineExceeded}}

	result := h.poller.RunCycle(context.Background())

	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, []string{topicB}, result.FailedTopics)
	assert.Equal(t, 1, result.ErrorsByType["timeout"])
	assert.True(t, h.seen(t, topicA))
	assert.False(t, h.seen(t, topicB), "failed topic stays eligible for retry")
}

func TestRunCycleSurvivesTopicWorkerPanic(t *testing.T) {
	for _, workers := range []int{1, 2} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			h := newHarness(t)
			h.poller.cfg.TopicWorkers = workers
			h.fetcher.panics[topicB] = true

			result := h.poller.RunCycle(context.Background())

			assert.Nil(t, result.RecoveredPanic)
			assert.Equal(t, 1, result.Delivered)
			assert.Equal(t, []string{topicB}, result.FailedTopics)
			assert.True(t, h.seen(t, topicA))
			assert.False(t, h.seen(t, topicB), "panicked topic stays eligible for retry")

			delete(h.fetcher.panics, topicB)
			h.poller.RunCycle(context.Background())
			assert.True(t, h.seen(t, topicB))
		})
	}
}

func TestRunCycleHomepageFailure(t *testing.T) {
	h := newHarness(t)
	h.fetcher.fail[baseURL] = &scraper.FetchError{URL: baseURL, Status: 403, Err: scraper.ErrForbidden{Err: errors.New("http status 403")}}

	result := h.poller.RunCycle(context.Background())

	require.Error(t, result.HomepageErr)
	assert.Equal(t, 1, result.ErrorsByType["forbidden"])
	assert.Zero(t, result.TopicCount)
	assert.Empty(t, h.channel.docs)
	assert.False(t, result.EndTime.IsZero())
}

func TestRunCycleHomepageWithoutTopics(t *testing.T) {
	h := newHarness(t)
	h.fetcher.pages[baseURL] = `<html><body><a href="/about/">About</a></body></html>`

	result := h.poller.RunCycle(context.Background())

	require.Error(t, result.HomepageErr)
	assert.Equal(t, 1, result.ErrorsByType["parse"])
}

type panicDeliverer struct{}

func (panicDeliverer) Deliver(context.Context, models.Listing) []models.DeliveryOutcome {
	panic("boom")
}

func TestRunCycleRecoversPanic(t *testing.T) {
	h := newHarness(t)
	h.poller.pacer = panicDeliverer{}

	result := h.poller.RunCycle(context.Background())

	assert.Equal(t, "boom", result.RecoveredPanic)
	assert.False(t, result.EndTime.IsZero())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	var waits []time.Duration
	cycles := 0
	h.poller.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		cycles++
		if cycles == 2 {
			cancel()
		}
		return ctx.Err()
	}

	err := h.poller.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{15 * time.Minute, 15 * time.Minute}, waits)
	assert.Len(t, h.channel.docs, 1)
}

func TestCrawlKeepsHomepageOrder(t *testing.T) {
	h := newHarness(t)
	var result models.CycleResult
	result.ErrorsByType = map[string]int{}

	listings := h.poller.Crawl(context.Background(), &result)

	require.Len(t, listings, 2)
	assert.Equal(t, topicA, listings[0].TopicURL)
	assert.Equal(t, "Movie.Name.2024", listings[0].Title)
	assert.Equal(t, topicB, listings[1].TopicURL)
	assert.Empty(t, listings[1].Files)
}

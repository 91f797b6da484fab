package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/go-torrent-relay/config"
	"github.com/aluiziolira/go-torrent-relay/metrics"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test/"
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	return cfg
}

func newTestFetcher(t *testing.T, cfg *config.Config) (*Fetcher, *httpmock.MockTransport) {
	t.Helper()
	f, err := NewFetcher(cfg, metrics.New())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	transport := httpmock.NewMockTransport()
	f.WithTransport(transport)
	return f, transport
}

func TestFetcherBackoffCapped(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond

	f, err := NewFetcher(cfg, nil)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	if got := f.backoff(1); got != 200*time.Millisecond {
		t.Fatalf("first backoff = %v, want 200ms", got)
	}
	if delay := f.backoff(4); delay > cfg.RetryBackoffMax {
		t.Fatalf("delay %v exceeds max %v", delay, cfg.RetryBackoffMax)
	}
}

func TestClassifyError(t *testing.T) {
	challenge := []byte("<html><head><title>Just a moment...</title></head></html>")
	tests := []struct {
		name       string
		err        error
		statusCode int
		body       []byte
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "forbidden challenge", err: nil, statusCode: http.StatusForbidden, body: challenge, expected: "challenge"},
		{name: "unavailable challenge", err: nil, statusCode: http.StatusServiceUnavailable, body: challenge, expected: "challenge"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server", err: nil, statusCode: http.StatusBadGateway, expected: "server"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(classifyError(tt.err, tt.statusCode, tt.body)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(&FetchError{URL: "u", Err: ErrServer{Err: errors.New("502")}}) {
		t.Fatalf("server errors should be retryable")
	}
	if Retryable(&FetchError{URL: "u", Err: ErrNotFound{Err: errors.New("404")}}) {
		t.Fatalf("not found should not be retryable")
	}
	if Retryable(context.Canceled) {
		t.Fatalf("cancellation should not be retryable")
	}
}

func TestFetcherReturnsBody(t *testing.T) {
	f, transport := newTestFetcher(t, testConfig())
	transport.RegisterResponder("GET", "http://example.test/", htmlResponder("<html>home</html>"))

	body, err := f.Fetch(context.Background(), PhaseHomepage, "http://example.test/")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>home</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestFetcherRevisitsSameURL(t *testing.T) {
	f, transport := newTestFetcher(t, testConfig())
	transport.RegisterResponder("GET", "http://example.test/", htmlResponder("<html>home</html>"))

	for i := 0; i < 3; i++ {
		if _, err := f.Fetch(context.Background(), PhaseHomepage, "http://example.test/"); err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
	}
	if got := transport.GetTotalCallCount(); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
}

func TestFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		expected  string
		wantCalls int
	}{
		{status: http.StatusNotFound, expected: "not_found", wantCalls: 1},
		{status: http.StatusForbidden, expected: "forbidden", wantCalls: 1},
		{status: http.StatusTooManyRequests, expected: "rate_limited", wantCalls: 3},
		{status: http.StatusInternalServerError, expected: "server", wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			f, transport := newTestFetcher(t, testConfig())
			transport.RegisterResponder("GET", "http://example.test/topic", httpmock.NewStringResponder(tt.status, ""))

			_, err := f.Fetch(context.Background(), PhaseTopic, "http://example.test/topic")

			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("expected FetchError, got %v", err)
			}
			if fetchErr.URL != "http://example.test/topic" || fetchErr.Status != tt.status {
				t.Fatalf("fetch error = %+v", fetchErr)
			}
			if got := ErrorType(err); got != tt.expected {
				t.Fatalf("error type = %q, want %q", got, tt.expected)
			}
			if got := transport.GetTotalCallCount(); got != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFetcherRetriesThenSucceeds(t *testing.T) {
	f, transport := newTestFetcher(t, testConfig())

	calls := 0
	transport.RegisterResponder("GET", "http://example.test/file.torrent", func(req *http.Request) (*http.Response, error) {
		calls++
		if calls == 1 {
			return httpmock.NewStringResponse(http.StatusBadGateway, ""), nil
		}
		return httpmock.NewBytesResponse(http.StatusOK, []byte("d8:announce")), nil
	})

	body, err := f.Fetch(context.Background(), PhaseFile, "http://example.test/file.torrent")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "d8:announce" {
		t.Fatalf("body = %q", body)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestFetcherDetectsChallengeOn200(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 0
	f, transport := newTestFetcher(t, cfg)
	transport.RegisterResponder("GET", "http://example.test/", htmlResponder(`<html><script>window._cf_chl_opt={}</script></html>`))

	_, err := f.Fetch(context.Background(), PhaseHomepage, "http://example.test/")
	if got := ErrorType(err); got != "challenge" {
		t.Fatalf("error type = %q (%v), want challenge", got, err)
	}
}

func TestFetcherSendsBrowserProfileAndCookies(t *testing.T) {
	f, transport := newTestFetcher(t, testConfig())

	var topicReq *http.Request
	transport.RegisterResponder("GET", "http://example.test/", func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewStringResponse(http.StatusOK, "<html>home</html>")
		resp.Header.Set("Set-Cookie", "cf_clearance=token123; Path=/")
		return resp, nil
	})
	transport.RegisterResponder("GET", "http://example.test/forums/topic/1/", func(req *http.Request) (*http.Response, error) {
		topicReq = req
		return httpmock.NewStringResponse(http.StatusOK, "<html>topic</html>"), nil
	})

	if _, err := f.Fetch(context.Background(), PhaseHomepage, "http://example.test/"); err != nil {
		t.Fatalf("fetch homepage: %v", err)
	}
	if _, err := f.Fetch(context.Background(), PhaseTopic, "http://example.test/forums/topic/1/"); err != nil {
		t.Fatalf("fetch topic: %v", err)
	}

	if topicReq == nil {
		t.Fatalf("topic request not captured")
	}
	if topicReq.Header.Get("User-Agent") == "" {
		t.Fatalf("user agent missing")
	}
	if topicReq.Header.Get("Accept-Language") == "" || topicReq.Header.Get("Sec-Fetch-Mode") != "navigate" {
		t.Fatalf("browser headers missing: %v", topicReq.Header)
	}
	if topicReq.Header.Get("Referer") != "http://example.test/" {
		t.Fatalf("referer = %q", topicReq.Header.Get("Referer"))
	}
	cookie, err := topicReq.Cookie("cf_clearance")
	if err != nil || cookie.Value != "token123" {
		t.Fatalf("clearance cookie not replayed: %v", err)
	}
}

func TestFetcherHonorsCancelledContext(t *testing.T) {
	f, transport := newTestFetcher(t, testConfig())
	transport.RegisterResponder("GET", "http://example.test/", htmlResponder("<html></html>"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, PhaseHomepage, "http://example.test/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := transport.GetTotalCallCount(); got != 0 {
		t.Fatalf("calls = %d, want 0", got)
	}
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep ignored cancellation")
	}
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

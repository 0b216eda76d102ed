package crawler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Fetcher bounds the number of in-flight requests across the whole crawl.
// Page and robots.txt fetches draw from the same permit pool.
type Fetcher struct {
	transport Transport
	permits   *semaphore.Weighted
	metrics   *Metrics

	requestCount int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int
}

// NewFetcher returns a Fetcher allowing at most maxConcurrency requests at
// once.
func NewFetcher(transport Transport, maxConcurrency int, metrics *Metrics) *Fetcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &Fetcher{
		transport:    transport,
		permits:      semaphore.NewWeighted(int64(maxConcurrency)),
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}
}

// Fetch returns the body of rawURL, or nil when the request fails, times out,
// or answers with a non-success status. Failures are logged and counted but
// never returned: a failed URL simply has no content for this crawl.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) []byte {
	return f.fetch(ctx, rawURL, true)
}

// FetchRobots fetches a robots.txt document under the same permit pool as
// Fetch. A missing document is normal, so failures are logged at debug and
// kept out of the crawl's error tally.
func (f *Fetcher) FetchRobots(ctx context.Context, rawURL string) []byte {
	return f.fetch(ctx, rawURL, false)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, tally bool) []byte {
	if err := f.permits.Acquire(ctx, 1); err != nil {
		slog.Debug("fetch abandoned waiting for permit",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		return nil
	}
	defer f.permits.Release(1)

	f.metrics.AddInFlight(1)
	defer f.metrics.AddInFlight(-1)

	atomic.AddInt64(&f.requestCount, 1)
	start := time.Now()
	resp, err := f.transport.Fetch(ctx, rawURL)
	f.metrics.ObserveDuration(time.Since(start))
	if err == nil && resp == nil {
		err = errNoResponse
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if classified := classifyError(err, statusCode); classified != nil {
		if !tally {
			slog.Debug("robots.txt fetch failed",
				slog.String("url", rawURL),
				slog.String("category", errorTypeLabel(classified)),
			)
			f.metrics.IncFetch("robots_unavailable")
			return nil
		}
		f.recordFailure(rawURL, classified)
		return nil
	}

	f.metrics.IncFetch("ok")
	if resp.Body == nil {
		return []byte{}
	}
	return resp.Body
}

func (f *Fetcher) recordFailure(rawURL string, err error) {
	atomic.AddInt64(&f.errorCount, 1)
	category := errorTypeLabel(err)

	f.mu.Lock()
	f.errorsByType[category]++
	f.failedURLs = append(f.failedURLs, rawURL)
	f.mu.Unlock()

	slog.Warn("fetch failed",
		slog.String("url", rawURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
	f.metrics.IncFetch("failed")
	f.metrics.IncError(category)
}

// RequestCount returns the number of requests issued so far.
func (f *Fetcher) RequestCount() int {
	return int(atomic.LoadInt64(&f.requestCount))
}

// ErrorCount returns the number of failed requests so far.
func (f *Fetcher) ErrorCount() int {
	return int(atomic.LoadInt64(&f.errorCount))
}

func (f *Fetcher) snapshotFailedURLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.failedURLs))
	copy(out, f.failedURLs)
	return out
}

func (f *Fetcher) snapshotErrors() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.errorsByType))
	for k, v := range f.errorsByType {
		out[k] = v
	}
	return out
}

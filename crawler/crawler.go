// Package crawler walks a web graph from a seed URL and collects one record
// per extractable page.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-site-crawler/config"
	"github.com/aluiziolira/go-site-crawler/models"
	"github.com/aluiziolira/go-site-crawler/parser"
	"github.com/aluiziolira/go-site-crawler/robots"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Sink receives the final record set of a crawl.
type Sink interface {
	Process(records ...*models.Record) error
	Close() error
}

// Crawler runs crawls configured from cfg.
type Crawler struct {
	cfg       *config.Config
	transport Transport
	Metrics   *Metrics
}

// NewCrawler builds a crawler that fetches over HTTP through colly.
func NewCrawler(cfg *config.Config) (*Crawler, error) {
	return newCrawler(cfg, NewCollyTransport(cfg))
}

func newCrawler(cfg *config.Config, transport Transport) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Crawler{
		cfg:       cfg,
		transport: transport,
		Metrics:   NewMetrics(),
	}, nil
}

// Run crawls from the configured seed until the traversal mode terminates,
// then hands the collected records to sink. A sink failure is returned
// together with the result so that no collected record is lost.
func (c *Crawler) Run(ctx context.Context, sink Sink) (*models.CrawlResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := c.newRun()
	if err != nil {
		return nil, err
	}

	mode := c.cfg.Mode()
	slog.Info("starting crawl",
		slog.String("run_id", r.id),
		slog.String("seed", c.cfg.Seed),
		slog.String("mode", string(mode)),
		slog.Int("max_concurrency", c.cfg.MaxConcurrency),
	)

	start := time.Now()
	switch mode {
	case models.ModeDepth:
		r.crawlDepth(ctx, *c.cfg.Depth)
	default:
		r.crawlCount(ctx, *c.cfg.TargetCount)
	}

	result := &models.CrawlResult{
		RunID:        r.id,
		Mode:         mode,
		Records:      r.records,
		StartTime:    start,
		EndTime:      time.Now(),
		Visited:      r.visited,
		Denied:       r.denied,
		Skipped:      r.skipped,
		ErrorCount:   r.fetcher.ErrorCount(),
		FailedURLs:   r.fetcher.snapshotFailedURLs(),
		ErrorsByType: r.fetcher.snapshotErrors(),
		RequestCount: r.fetcher.RequestCount(),
		Exhausted:    r.exhausted,
		Interrupted:  r.interrupted,
	}

	if sink == nil {
		return result, nil
	}
	if err := sink.Process(result.Records...); err != nil {
		// Close still runs so the sink can release its output and report
		// anything its writer failed on.
		if closeErr := sink.Close(); closeErr != nil && !errors.Is(err, closeErr) {
			err = errors.Join(err, closeErr)
		}
		return result, fmt.Errorf("persist records: %w", err)
	}
	if err := sink.Close(); err != nil {
		return result, fmt.Errorf("persist records: %w", err)
	}
	return result, nil
}

// run owns every piece of mutable state for one crawl: the permit pool, the
// robots cache, the seen set, and the collected records. The frontier lives
// in the traversal loop that drives it.
type run struct {
	cfg     *config.Config
	id      string
	fetcher *Fetcher
	gate    *robots.Gate
	metrics *Metrics
	extract parser.ExtractOptions

	seen    map[string]struct{}
	records []*models.Record

	visited     int
	denied      int
	skipped     int
	exhausted   bool
	interrupted bool
}

func (c *Crawler) newRun() (*run, error) {
	fetcher := NewFetcher(c.transport, c.cfg.MaxConcurrency, c.Metrics)
	gate, err := robots.NewGate(robotsFetcher{fetcher}, c.cfg.RobotsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("robots gate: %w", err)
	}
	return &run{
		cfg:     c.cfg,
		id:      uuid.NewString(),
		fetcher: fetcher,
		gate:    gate,
		metrics: c.Metrics,
		extract: parser.ExtractOptions{DescriptionAttr: c.cfg.DescriptionAttr},
		seen:    make(map[string]struct{}),
	}, nil
}

// robotsFetcher hands the gate the robots.txt variant of the shared fetcher.
type robotsFetcher struct {
	f *Fetcher
}

func (r robotsFetcher) Fetch(ctx context.Context, rawURL string) []byte {
	return r.f.FetchRobots(ctx, rawURL)
}

type visitResult struct {
	url     string
	links   []string
	data    *models.ExtractedData
	denied  bool
	skipped bool
}

// yieldsRecord requires both outbound links and extracted data; a page
// without links never becomes a record.
func (v visitResult) yieldsRecord() bool {
	return len(v.links) > 0 && v.data != nil
}

func (r *run) visit(ctx context.Context, rawURL string) visitResult {
	res := visitResult{url: rawURL}

	origin, err := parser.Origin(rawURL)
	if err != nil {
		slog.Warn("skipping url", slog.String("url", rawURL), slog.Any("error", err))
		res.skipped = true
		return res
	}

	if !r.gate.IsAllowed(ctx, origin, rawURL) {
		slog.Warn("robots.txt disallows url", slog.String("url", rawURL))
		r.metrics.IncDenied()
		res.denied = true
		return res
	}

	body := r.fetcher.Fetch(ctx, rawURL)
	res.links, res.data = parser.Extract(body, rawURL, r.extract)
	return res
}

// visitAll visits urls concurrently and returns their results in the order
// of urls.
func (r *run) visitAll(ctx context.Context, urls []string) []visitResult {
	results := make([]visitResult, len(urls))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrency)
	for i, u := range urls {
		g.Go(func() error {
			results[i] = r.visit(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// markSeen adds u to the seen set and reports whether it was new.
func (r *run) markSeen(u string) bool {
	if _, ok := r.seen[u]; ok {
		return false
	}
	r.seen[u] = struct{}{}
	return true
}

func (r *run) isSeen(u string) bool {
	_, ok := r.seen[u]
	return ok
}

// account tallies a visit outcome and reports whether the page was fetched.
func (r *run) account(res visitResult) bool {
	switch {
	case res.skipped:
		r.skipped++
		return false
	case res.denied:
		r.denied++
		return false
	}
	r.visited++
	return true
}

func (r *run) addRecord(rec *models.Record) {
	r.records = append(r.records, rec)
	r.metrics.IncRecords()
}

func (r *run) crawlDepth(ctx context.Context, maxDepth int) {
	level := []string{r.cfg.Seed}
	if r.cfg.DedupPolicy == config.DedupLink {
		r.markSeen(r.cfg.Seed)
	}

	for depth := 0; depth <= maxDepth && len(level) > 0; depth++ {
		if ctx.Err() != nil {
			r.interrupted = true
			slog.Warn("crawl interrupted", slog.Int("depth", depth))
			return
		}

		slog.Debug("crawling level", slog.Int("depth", depth), slog.Int("urls", len(level)))
		results := r.visitAll(ctx, level)

		var next []string
		for _, res := range results {
			if !r.account(res) {
				continue
			}
			slog.Info("visited",
				slog.String("url", res.url),
				slog.Int("depth", depth),
				slog.Int("links", len(res.links)),
			)

			next = append(next, r.discoverForLevel(res)...)
			if res.yieldsRecord() {
				r.addRecord(models.NewRecord(res.url, res.data).WithDepth(depth))
			}
		}
		level = next
	}
}

// discoverForLevel returns the links of res that join the next level.
func (r *run) discoverForLevel(res visitResult) []string {
	var out []string
	if r.cfg.DedupPolicy == config.DedupPage {
		fresh := !r.isSeen(res.url)
		for _, link := range res.links {
			if fresh {
				out = append(out, link)
			}
			r.markSeen(link)
		}
		return out
	}

	for _, link := range res.links {
		if r.markSeen(link) {
			out = append(out, link)
		}
	}
	return out
}

func (r *run) crawlCount(ctx context.Context, target int) {
	queue := []string{r.cfg.Seed}
	if r.cfg.DedupPolicy == config.DedupLink {
		r.markSeen(r.cfg.Seed)
	}

	collected := 0
	for collected < target {
		if ctx.Err() != nil {
			r.interrupted = true
			slog.Warn("crawl interrupted",
				slog.Int("collected", collected),
				slog.Int("target", target),
			)
			return
		}
		if len(queue) == 0 {
			r.exhausted = true
			slog.Warn("frontier exhausted before reaching target",
				slog.Int("collected", collected),
				slog.Int("target", target),
			)
			return
		}

		// Every visit yields at most one record, so a batch never needs
		// more URLs than records still missing. Results are applied in
		// dequeue order, which keeps FIFO semantics intact.
		n := min(len(queue), r.cfg.MaxConcurrency, target-collected)
		batch := queue[:n]
		queue = queue[n:]

		for _, res := range r.visitAll(ctx, batch) {
			if !r.account(res) {
				continue
			}
			for _, link := range res.links {
				if r.markSeen(link) {
					queue = append(queue, link)
				}
			}
			if res.yieldsRecord() {
				r.addRecord(models.NewRecord(res.url, res.data))
				collected++
			}
			slog.Info("visited",
				slog.String("url", res.url),
				slog.String("progress", fmt.Sprintf("%d/%d", collected, target)),
			)
		}
	}
}

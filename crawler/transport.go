package crawler

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/aluiziolira/go-site-crawler/config"
	"github.com/gocolly/colly/v2"
)

// Response is the outcome of a single GET.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs one HTTP GET. Errors are transport failures; any HTTP
// status, successful or not, comes back as a Response.
type Transport interface {
	Fetch(ctx context.Context, rawURL string) (*Response, error)
}

var errNoResponse = errors.New("no response received")

// CollyTransport issues requests through a colly collector. Robots handling,
// revisit tracking, and rate limits are left to the crawler itself.
type CollyTransport struct {
	collector *colly.Collector
}

// NewCollyTransport builds a transport configured from cfg.
func NewCollyTransport(cfg *config.Config) *CollyTransport {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(newDecodingTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxConcurrency,
		MaxIdleConnsPerHost: cfg.MaxConcurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}))

	return &CollyTransport{collector: collector}
}

// WithTransport replaces the HTTP round tripper used by the collector.
// Response decoding stays in front of rt.
func (t *CollyTransport) WithTransport(rt http.RoundTripper) {
	t.collector.WithTransport(newDecodingTransport(rt))
}

// Fetch performs a synchronous GET of rawURL. The per-request deadline is the
// collector's request timeout.
func (t *CollyTransport) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clone shares the HTTP backend but carries its own callbacks, so
	// concurrent fetches never see each other's responses.
	c := t.collector.Clone()
	var resp *Response
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{StatusCode: r.StatusCode, Body: r.Body}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}
	return resp, nil
}

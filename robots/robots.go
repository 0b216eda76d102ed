// Package robots answers whether a URL may be fetched under its origin's
// robots.txt.
package robots

import (
	"context"
	"log/slog"
	"net/url"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/singleflight"
)

// Fetcher retrieves a document body. A nil result means the document could
// not be fetched.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) []byte
}

// Gate evaluates robots.txt rules for the "*" user agent.
type Gate struct {
	fetcher Fetcher

	// cache is nil when every lookup must re-fetch robots.txt.
	cache  *lru.Cache[string, *robotstxt.RobotsData]
	flight singleflight.Group
}

// NewGate builds a gate that fetches robots.txt through fetcher. A positive
// cacheSize keeps the parsed rules of that many origins; zero disables
// caching so robots.txt is requested again for every URL.
func NewGate(fetcher Fetcher, cacheSize int) (*Gate, error) {
	g := &Gate{fetcher: fetcher}
	if cacheSize > 0 {
		cache, err := lru.New[string, *robotstxt.RobotsData](cacheSize)
		if err != nil {
			return nil, err
		}
		g.cache = cache
	}
	return g, nil
}

// IsAllowed reports whether rawURL, which belongs to origin, may be fetched.
// Missing, unreachable, or unparsable robots.txt documents allow everything.
func (g *Gate) IsAllowed(ctx context.Context, origin, rawURL string) bool {
	rules := g.rules(ctx, origin)
	if rules == nil {
		return true
	}

	group := rules.FindGroup("*")
	if group == nil {
		return true
	}
	return group.Test(testPath(rawURL))
}

func (g *Gate) rules(ctx context.Context, origin string) *robotstxt.RobotsData {
	if g.cache == nil {
		return g.fetchRobots(ctx, origin)
	}

	if rules, ok := g.cache.Get(origin); ok {
		return rules
	}
	v, _, _ := g.flight.Do(origin, func() (interface{}, error) {
		if rules, ok := g.cache.Get(origin); ok {
			return rules, nil
		}
		rules := g.fetchRobots(ctx, origin)
		g.cache.Add(origin, rules)
		return rules, nil
	})
	rules, _ := v.(*robotstxt.RobotsData)
	return rules
}

func (g *Gate) fetchRobots(ctx context.Context, origin string) *robotstxt.RobotsData {
	robotsURL := origin + "/robots.txt"
	body := g.fetcher.Fetch(ctx, robotsURL)
	if body == nil {
		slog.Debug("robots.txt unavailable, allowing all", slog.String("url", robotsURL))
		return nil
	}

	rules, err := robotstxt.FromBytes(body)
	if err != nil {
		slog.Warn("robots.txt unparsable, allowing all",
			slog.String("url", robotsURL),
			slog.Any("error", err),
		)
		return nil
	}
	return rules
}

// testPath is the part of rawURL that robots.txt rules are matched against.
func testPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/"
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}

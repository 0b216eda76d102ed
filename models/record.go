// Package models defines data structures for the crawler.
package models

import "time"

// NoneGiven is stored in a record field when the page lacks the element.
const NoneGiven = "None given"

// Mode selects the traversal discipline of a crawl.
type Mode string

const (
	// ModeDepth visits the graph level by level up to a maximum depth.
	ModeDepth Mode = "depth"
	// ModeCount visits a FIFO frontier until enough records are collected.
	ModeCount Mode = "count"
)

// ExtractedData holds the metadata pulled out of a single page.
type ExtractedData struct {
	Title       string `json:"title"`
	Description string `json:"desc"`
}

// Record is one emitted result row. Depth is only set in depth mode.
type Record struct {
	URL         string `csv:"url" json:"url"`
	Depth       *int   `csv:"depth" json:"depth,omitempty"`
	Title       string `csv:"title" json:"title"`
	Description string `csv:"desc" json:"desc"`
}

// NewRecord builds a record for url from extracted page data.
func NewRecord(url string, data *ExtractedData) *Record {
	r := &Record{
		URL:         url,
		Title:       NoneGiven,
		Description: NoneGiven,
	}
	if data != nil {
		r.Title = data.Title
		r.Description = data.Description
	}
	return r
}

// WithDepth returns r with its depth set.
func (r *Record) WithDepth(depth int) *Record {
	d := depth
	r.Depth = &d
	return r
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	RunID        string
	Mode         Mode
	Records      []*Record
	StartTime    time.Time
	EndTime      time.Time
	Visited      int
	Denied       int
	Skipped      int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RequestCount int
	// Exhausted is set when a count-bounded crawl ran out of URLs before
	// reaching its target.
	Exhausted   bool
	Interrupted bool
}

// Package parser turns fetched pages into links and record fields.
package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/aluiziolira/go-site-crawler/models"
)

// ValidateRecord ensures the crawler captured the required fields.
func ValidateRecord(r *models.Record) error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	u, err := url.Parse(r.URL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("record url %q is not absolute", r.URL)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record missing title for %s", r.URL)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("record missing description for %s", r.URL)
	}
	if r.Depth != nil && *r.Depth < 0 {
		return fmt.Errorf("record depth %d is negative for %s", *r.Depth, r.URL)
	}
	return nil
}

// Normalize resolves rawLink against baseURL into an absolute URL.
// The bool result is false when rawLink is blank or either input fails to
// parse.
func Normalize(rawLink, baseURL string) (string, bool) {
	rawLink = strings.TrimSpace(rawLink)
	if rawLink == "" {
		return "", false
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(rawLink)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// Origin returns the scheme://host[:port] part of rawURL, the unit robots.txt
// applies to. Only http and https URLs have an origin the crawler can visit.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

package parser

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-site-crawler/models"
)

// ExtractOptions tunes how page metadata is located.
type ExtractOptions struct {
	// DescriptionAttr is the meta attribute whose value must be
	// "description". Defaults to "property".
	DescriptionAttr string
}

// Extract parses an HTML page fetched from sourceURL and returns its
// outbound links, deduplicated in document order, plus its title and
// description. An empty body, which is how a failed fetch surfaces, yields
// no links and nil data.
func Extract(body []byte, sourceURL string, opts ExtractOptions) ([]string, *models.ExtractedData) {
	if len(body) == 0 {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}

	links := extractLinks(doc, sourceURL)

	data := &models.ExtractedData{
		Title:       models.NoneGiven,
		Description: models.NoneGiven,
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data.Title = title
	}

	attr := opts.DescriptionAttr
	if attr == "" {
		attr = "property"
	}
	meta := doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		v, ok := s.Attr(attr)
		return ok && v == "description"
	}).First()
	if content, ok := meta.Attr("content"); ok && strings.TrimSpace(content) != "" {
		data.Description = strings.TrimSpace(content)
	}

	return links, data
}

func extractLinks(doc *goquery.Document, sourceURL string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs, ok := Normalize(href, sourceURL)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})
	return links
}

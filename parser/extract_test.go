package parser

import (
	"reflect"
	"testing"

	"github.com/aluiziolira/go-site-crawler/models"
)

const pageURL = "http://example.test/section/index.html"

func TestExtractLinks(t *testing.T) {
	body := []byte(`<html><head><title>Section</title></head><body>
<a href="/a">A</a>
<a href="b.html">B</a>
<a href="http://example.test/a">A again</a>
<a href="">empty</a>
<a>no href</a>
<a href="https://other.test/x#frag">external</a>
</body></html>`)

	links, data := Extract(body, pageURL, ExtractOptions{})
	want := []string{
		"http://example.test/a",
		"http://example.test/section/b.html",
		"https://other.test/x#frag",
	}
	if !reflect.DeepEqual(links, want) {
		t.Fatalf("links = %v, want %v", links, want)
	}
	if data == nil || data.Title != "Section" {
		t.Fatalf("data = %+v, want title Section", data)
	}
}

func TestExtractEmptyBody(t *testing.T) {
	for _, body := range [][]byte{nil, {}} {
		links, data := Extract(body, pageURL, ExtractOptions{})
		if len(links) != 0 {
			t.Fatalf("links = %v, want none", links)
		}
		if data != nil {
			t.Fatalf("data = %+v, want nil", data)
		}
	}
}

func TestExtractMetadata(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		opts     ExtractOptions
		wantData models.ExtractedData
	}{
		{
			name: "title and property description",
			body: `<html><head><title> Hello </title><meta property="description" content="A page"></head></html>`,
			wantData: models.ExtractedData{
				Title:       "Hello",
				Description: "A page",
			},
		},
		{
			name: "name description ignored by default",
			body: `<html><head><title>Hello</title><meta name="description" content="A page"></head></html>`,
			wantData: models.ExtractedData{
				Title:       "Hello",
				Description: models.NoneGiven,
			},
		},
		{
			name: "name description when configured",
			body: `<html><head><title>Hello</title><meta name="description" content="A page"></head></html>`,
			opts: ExtractOptions{DescriptionAttr: "name"},
			wantData: models.ExtractedData{
				Title:       "Hello",
				Description: "A page",
			},
		},
		{
			name: "attribute value must match exactly",
			body: `<html><head><title>Hello</title><meta property=" DESCRIPTION " content="Padded"><meta property="Description" content="Cased"></head></html>`,
			wantData: models.ExtractedData{
				Title:       "Hello",
				Description: models.NoneGiven,
			},
		},
		{
			name: "first exact match wins",
			body: `<html><head><meta property="og:description" content="Open graph"><meta property="description" content="First"><meta property="description" content="Second"></head></html>`,
			wantData: models.ExtractedData{
				Title:       models.NoneGiven,
				Description: "First",
			},
		},
		{
			name: "missing title",
			body: `<html><head><meta property="description" content="Only desc"></head></html>`,
			wantData: models.ExtractedData{
				Title:       models.NoneGiven,
				Description: "Only desc",
			},
		},
		{
			name: "empty title and empty content",
			body: `<html><head><title></title><meta property="description" content=""></head></html>`,
			wantData: models.ExtractedData{
				Title:       models.NoneGiven,
				Description: models.NoneGiven,
			},
		},
		{
			name: "malformed markup",
			body: `<html><head><title>Broken</title><body><p>unclosed <div><span>`,
			wantData: models.ExtractedData{
				Title:       "Broken",
				Description: models.NoneGiven,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, data := Extract([]byte(tt.body), pageURL, tt.opts)
			if data == nil {
				t.Fatalf("data is nil")
			}
			if *data != tt.wantData {
				t.Errorf("data = %+v, want %+v", *data, tt.wantData)
			}
		})
	}
}

func TestExtractPageWithoutLinksStillHasData(t *testing.T) {
	links, data := Extract([]byte(`<html><head><title>Leaf</title></head><body>no links</body></html>`), pageURL, ExtractOptions{})
	if len(links) != 0 {
		t.Fatalf("links = %v, want none", links)
	}
	if data == nil || data.Title != "Leaf" {
		t.Fatalf("data = %+v, want title Leaf", data)
	}
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-site-crawler/config"
)

func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		switch r.URL.Path {
		case "/robots.txt":
			http.NotFound(w, r)
		case "/":
			fmt.Fprint(w, `<html><head><title>Home</title><meta property="description" content="Start here"></head>
<body><a href="/a">A</a></body></html>`)
		case "/a":
			fmt.Fprint(w, `<html><head><title>Page A</title></head><body><a href="/">home</a></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunNoArgs(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := NewMain().Run(context.Background(), nil, &stdout, &stderr); err == nil {
		t.Fatalf("expected error without arguments")
	}
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := NewMain().Run(context.Background(), []string{"--help"}, &stdout, &stderr); err != nil {
		t.Fatalf("help: %v", err)
	}
	if !strings.Contains(stdout.String(), "crawler") {
		t.Fatalf("help output missing program name: %q", stdout.String())
	}
}

func TestRunConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing mode", args: []string{"http://example.test/"}, want: "one of depth or target count"},
		{name: "bad scheme", args: []string{"ftp://example.test/", "--depth", "1"}, want: "http or https"},
		{name: "negative depth", args: []string{"http://example.test/", "--depth=-1"}, want: "depth cannot be negative"},
		{name: "bad format", args: []string{"http://example.test/", "--count", "3", "--format", "xml"}, want: "output format"},
		{name: "both modes", args: []string{"http://example.test/", "--depth", "1", "--count", "3"}, want: "--depth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := NewMain().Run(context.Background(), tt.args, &stdout, &stderr)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestRunDepthCrawlWritesCSV(t *testing.T) {
	srv := newTestSite(t)
	out := filepath.Join(t.TempDir(), "crawler.csv")

	var stdout, stderr bytes.Buffer
	args := []string{srv.URL + "/", "--depth", "1", "--output", out, "--max-concurrency", "4", "--timeout", "5s"}
	if err := NewMain().Run(context.Background(), args, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "\"url\",\"depth\",\"title\",\"desc\"\r\n" +
		fmt.Sprintf("\"%s/\",\"0\",\"Home\",\"Start here\"\r\n", srv.URL) +
		fmt.Sprintf("\"%s/a\",\"1\",\"Page A\",\"None given\"\r\n", srv.URL)
	if string(raw) != want {
		t.Fatalf("csv output:\n%q\nwant:\n%q", raw, want)
	}

	if !strings.Contains(stdout.String(), "Saved to ") || !strings.Contains(stdout.String(), "crawler.csv") {
		t.Fatalf("summary missing output path: %q", stdout.String())
	}
}

func TestRunConfigFileWithOverrides(t *testing.T) {
	srv := newTestSite(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "records.jsonl")
	cfgPath := filepath.Join(dir, "crawler.yaml")
	yaml := fmt.Sprintf("seed: %s/\ntarget_count: 5\nformat: json\noutput: %s\nmax_concurrency: 2\n", srv.URL, out)
	if err := os.WriteFile(cfgPath, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := NewMain().Run(context.Background(), []string{"--config", cfgPath, "--count", "2"}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("json lines = %d, want 2: %q", len(lines), raw)
	}
	if strings.Contains(string(raw), "depth") {
		t.Fatalf("count mode records must not carry depth: %q", raw)
	}
}

func TestRunCancelledWritesHeader(t *testing.T) {
	srv := newTestSite(t)
	out := filepath.Join(t.TempDir(), "crawler.csv")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	if err := NewMain().Run(ctx, []string{srv.URL + "/", "--count", "3", "--output", out}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(raw) != "\"url\",\"title\",\"desc\"\r\n" {
		t.Fatalf("csv output = %q, want header only", raw)
	}
	if !strings.Contains(stdout.String(), "Crawl interrupted") {
		t.Fatalf("summary should report interruption: %q", stdout.String())
	}
}

func TestCLIApplyTo(t *testing.T) {
	depth := 2
	timeout := 3 * time.Second
	policy := "PAGE"
	cli := &CLI{Seed: "http://example.test/", Depth: &depth, Timeout: &timeout, DedupPolicy: &policy, Verbose: true}

	cfg := config.DefaultConfig()
	count := 9
	cfg.TargetCount = &count
	cli.applyTo(cfg)

	if cfg.TargetCount != nil || cfg.Depth == nil || *cfg.Depth != 2 {
		t.Fatalf("mode not replaced: depth=%v count=%v", cfg.Depth, cfg.TargetCount)
	}
	if cfg.Timeout != timeout || cfg.DedupPolicy != config.DedupPage || !cfg.Verbose {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.MaxConcurrency != 100 {
		t.Fatalf("unset flag changed max concurrency to %d", cfg.MaxConcurrency)
	}
}

func TestJSONCompanion(t *testing.T) {
	tests := map[string]string{
		"crawler.csv":     "crawler.jsonl",
		"out/records.csv": "out/records.jsonl",
		"noext":           "noext.jsonl",
	}
	for in, want := range tests {
		if got := jsonCompanion(in); got != want {
			t.Fatalf("jsonCompanion(%q) = %q, want %q", in, got, want)
		}
	}
}

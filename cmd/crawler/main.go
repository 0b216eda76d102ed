package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/aluiziolira/go-site-crawler/config"
	"github.com/aluiziolira/go-site-crawler/crawler"
	"github.com/aluiziolira/go-site-crawler/models"
	"github.com/aluiziolira/go-site-crawler/pipeline"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct{}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Run parses args, crawls, and writes the collected records. Cancelling ctx
// stops the crawl early; records collected so far are still written.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("crawler"),
		kong.Description("Crawl a site from a seed URL and export page titles and descriptions"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no arguments provided")
	}
	if len(args) == 1 && (args[0] == "--help" || args[0] == "-h" || args[0] == "help") {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}
	if _, err := parser.Parse(args); err != nil {
		return err
	}

	cfg, err := cli.buildConfig()
	if err != nil {
		return err
	}

	logger, level := newLogger(cfg.Verbose, stdout)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := crawler.NewCrawler(cfg)
	if err != nil {
		return fmt.Errorf("initialising crawler: %w", err)
	}

	writer, err := createWriter(cfg)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, flushing collected records")
		case <-done:
		}
	}()

	metricsServer := startMetricsServer(cfg.MetricsAddr, c.Metrics)
	defer stopMetricsServer(metricsServer)

	p := pipeline.NewPipeline(writer, cfg.BatchSize)
	p.Start()
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	result, err := c.Run(ctx, p)
	if err != nil {
		// Run closes the pipeline itself; a second Close reports the same
		// writer error and only adds something when Run returned early.
		if closeErr := p.Close(); closeErr != nil && !errors.Is(err, closeErr) {
			err = errors.Join(err, closeErr)
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	printSummary(stdout, result, time.Since(startTime), outputFiles(cfg), p.GetMetrics())
	return nil
}

func createWriter(cfg *config.Config) (pipeline.OutputWriter, error) {
	mode := cfg.Mode()
	switch cfg.OutputFormat {
	case "json":
		return pipeline.NewJSONWriter(cfg.OutputFile)
	case "csv":
		return pipeline.NewCSVWriter(cfg.OutputFile, mode)
	case "dual":
		return pipeline.NewDualWriter(cfg.OutputFile, jsonCompanion(cfg.OutputFile), mode)
	case "sqlite":
		return pipeline.NewSQLiteWriter(cfg.OutputFile)
	default:
		return nil, fmt.Errorf("unsupported format: %s", cfg.OutputFormat)
	}
}

func jsonCompanion(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".jsonl"
}

func outputFiles(cfg *config.Config) []string {
	if cfg.OutputFormat == "dual" {
		return []string{cfg.OutputFile, jsonCompanion(cfg.OutputFile)}
	}
	return []string{cfg.OutputFile}
}

func startMetricsServer(addr string, metrics *crawler.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func stopMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(w io.Writer, result *models.CrawlResult, duration time.Duration, outputs []string, metrics map[string]interface{}) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(w, "\n"+separator)
	switch {
	case result.Interrupted:
		fmt.Fprintln(w, "Crawl interrupted")
	case result.Exhausted:
		fmt.Fprintln(w, "Crawl complete (ran out of URLs before reaching target)")
	default:
		fmt.Fprintln(w, "Crawl complete")
	}

	written := int64(0)
	if processed, ok := metrics["processed_records"].(int64); ok {
		written = processed
	}

	fmt.Fprintf(w, "  Run ID:        %s\n", result.RunID)
	fmt.Fprintf(w, "  Mode:          %s\n", result.Mode)
	fmt.Fprintf(w, "  Records:       %d\n", written)
	fmt.Fprintf(w, "  Visited:       %d\n", result.Visited)
	fmt.Fprintf(w, "  Robots denied: %d\n", result.Denied)
	if result.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:       %d\n", result.Skipped)
	}
	successRate := 0.0
	if result.RequestCount > 0 {
		successRate = float64(result.RequestCount-result.ErrorCount) / float64(result.RequestCount) * 100
	}
	fmt.Fprintf(w, "  Requests:      %d\n", result.RequestCount)
	fmt.Fprintf(w, "  Success rate:  %.2f%%\n", successRate)
	fmt.Fprintf(w, "  Errors:        %d\n", result.ErrorCount)
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(w, "  Error types:   %v\n", result.ErrorsByType)
	}
	if valErrors, ok := metrics["validation_errors"].(map[string]int); ok && len(valErrors) > 0 {
		fmt.Fprintf(w, "  Validation:    %v\n", valErrors)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintln(w, separator)
	for _, output := range outputs {
		path, err := filepath.Abs(output)
		if err != nil {
			path = output
		}
		fmt.Fprintf(w, "Saved to %s\n", path)
	}
}

func newLogger(verbose bool, out io.Writer) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if f, ok := out.(*os.File); ok && isTerminal(f) {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

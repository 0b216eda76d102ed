package main

import (
	"strings"
	"time"

	"github.com/aluiziolira/go-site-crawler/config"
)

// CLI defines the command-line interface structure for Kong. Pointer fields
// stay nil when neither the flag nor its environment variable is set, so
// values from the config file survive.
type CLI struct {
	Seed   string `arg:"" optional:"" env:"CRAWLER_SEED" help:"Seed URL to start crawling from"`
	Config string `short:"c" type:"existingfile" env:"CRAWLER_CONFIG" help:"YAML configuration file"`

	Depth *int `short:"d" xor:"mode" env:"CRAWLER_DEPTH" help:"Crawl level by level up to this depth"`
	Count *int `short:"n" xor:"mode" env:"CRAWLER_COUNT" help:"Crawl until this many records are collected"`

	MaxConcurrency  *int           `short:"m" env:"CRAWLER_MAX_CONCURRENCY" help:"Maximum concurrent HTTP requests (default 100)"`
	Timeout         *time.Duration `short:"t" env:"CRAWLER_TIMEOUT" help:"Per-request timeout (default 10s)"`
	UserAgent       *string        `env:"CRAWLER_USER_AGENT" help:"User-Agent header sent with every request"`
	RobotsCacheSize *int           `env:"CRAWLER_ROBOTS_CACHE_SIZE" help:"Origins whose robots.txt is cached; 0 fetches it for every URL"`
	DedupPolicy     *string        `env:"CRAWLER_DEDUP_POLICY" help:"Link deduplication: link or page"`
	DescriptionAttr *string        `env:"CRAWLER_DESCRIPTION_ATTR" help:"Meta attribute naming the description: property or name"`
	Output          *string        `short:"o" env:"CRAWLER_OUTPUT" help:"Output file path (default crawler.csv)"`
	Format          *string        `short:"f" env:"CRAWLER_FORMAT" help:"Output format: csv, json, dual, or sqlite"`
	BatchSize       *int           `env:"CRAWLER_BATCH_SIZE" help:"Records written per batch"`
	MetricsAddr     *string        `env:"CRAWLER_METRICS_ADDR" help:"Prometheus metrics listen address (e.g. :9090)"`
	Verbose         bool           `short:"v" env:"CRAWLER_VERBOSE" help:"Enable verbose logging"`
}

// buildConfig layers defaults, the optional config file, and CLI values.
func (cli *CLI) buildConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cli.Config != "" {
		if err := cfg.LoadFile(cli.Config); err != nil {
			return nil, err
		}
	}
	cli.applyTo(cfg)
	return cfg, nil
}

func (cli *CLI) applyTo(cfg *config.Config) {
	if cli.Seed != "" {
		cfg.Seed = cli.Seed
	}
	// A mode chosen on the command line replaces the one from the file.
	if cli.Depth != nil {
		cfg.Depth = cli.Depth
		cfg.TargetCount = nil
	}
	if cli.Count != nil {
		cfg.TargetCount = cli.Count
		cfg.Depth = nil
	}
	if cli.MaxConcurrency != nil {
		cfg.MaxConcurrency = *cli.MaxConcurrency
	}
	if cli.Timeout != nil {
		cfg.Timeout = *cli.Timeout
	}
	if cli.UserAgent != nil {
		cfg.UserAgent = *cli.UserAgent
	}
	if cli.RobotsCacheSize != nil {
		cfg.RobotsCacheSize = *cli.RobotsCacheSize
	}
	if cli.DedupPolicy != nil {
		cfg.DedupPolicy = strings.ToLower(*cli.DedupPolicy)
	}
	if cli.DescriptionAttr != nil {
		cfg.DescriptionAttr = strings.ToLower(*cli.DescriptionAttr)
	}
	if cli.Output != nil {
		cfg.OutputFile = *cli.Output
	}
	if cli.Format != nil {
		cfg.OutputFormat = strings.ToLower(*cli.Format)
	}
	if cli.BatchSize != nil {
		cfg.BatchSize = *cli.BatchSize
	}
	if cli.MetricsAddr != nil {
		cfg.MetricsAddr = *cli.MetricsAddr
	}
	if cli.Verbose {
		cfg.Verbose = true
	}
}

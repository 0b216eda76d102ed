package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/aluiziolira/go-site-crawler/models"
	"gopkg.in/yaml.v3"
)

// Dedup policies for discovered links.
const (
	// DedupLink checks and marks every discovered link individually.
	DedupLink = "link"
	// DedupPage only gates the links of a page on whether the page itself
	// was already seen, which can visit a URL more than once.
	DedupPage = "page"
)

// Config holds crawler configuration.
type Config struct {
	Seed            string        `yaml:"seed"`
	Depth           *int          `yaml:"depth"`
	TargetCount     *int          `yaml:"target_count"`
	MaxConcurrency  int           `yaml:"max_concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
	UserAgent       string        `yaml:"user_agent"`
	RobotsCacheSize int           `yaml:"robots_cache_size"` // 0 re-fetches robots.txt for every URL
	DedupPolicy     string        `yaml:"dedup_policy"`      // link or page
	DescriptionAttr string        `yaml:"description_attr"`  // property or name
	OutputFile      string        `yaml:"output"`
	OutputFormat    string        `yaml:"format"` // csv, json, dual, or sqlite
	BatchSize       int           `yaml:"batch_size"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	Verbose         bool          `yaml:"verbose"`
}

// DefaultConfig returns defaults matching the classic crawler behaviour.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency:  100,
		Timeout:         10 * time.Second,
		UserAgent:       "Mozilla/5.0 (compatible; go-site-crawler/1.0)",
		RobotsCacheSize: 512,
		DedupPolicy:     DedupLink,
		DescriptionAttr: "property",
		OutputFile:      "crawler.csv",
		OutputFormat:    "csv",
		BatchSize:       64,
	}
}

// LoadFile overlays the YAML document at path onto c. Keys missing from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %q: %w", path, err)
	}
	return nil
}

// Mode reports the traversal mode selected by Depth or TargetCount.
func (c *Config) Mode() models.Mode {
	if c.Depth != nil {
		return models.ModeDepth
	}
	return models.ModeCount
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return fmt.Errorf("seed URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.Seed)
	if err != nil {
		return fmt.Errorf("invalid seed URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("seed URL must use http or https")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("seed URL must include a host")
	}

	switch {
	case c.Depth == nil && c.TargetCount == nil:
		return fmt.Errorf("one of depth or target count is required")
	case c.Depth != nil && c.TargetCount != nil:
		return fmt.Errorf("depth and target count are mutually exclusive")
	case c.Depth != nil && *c.Depth < 0:
		return fmt.Errorf("depth cannot be negative")
	case c.TargetCount != nil && *c.TargetCount <= 0:
		return fmt.Errorf("target count must be positive")
	}

	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max concurrency must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.RobotsCacheSize < 0 {
		return fmt.Errorf("robots cache size cannot be negative")
	}
	if c.DedupPolicy != DedupLink && c.DedupPolicy != DedupPage {
		return fmt.Errorf("dedup policy must be link or page")
	}
	if c.DescriptionAttr != "property" && c.DescriptionAttr != "name" {
		return fmt.Errorf("description attr must be property or name")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	switch c.OutputFormat {
	case "csv", "json", "dual", "sqlite":
	default:
		return fmt.Errorf("output format must be csv, json, dual, or sqlite")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	return nil
}

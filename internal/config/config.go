// Package config loads the pipeline configuration: a YAML file for
// tunables and feed definitions, environment variables for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RankingConfig struct {
	// Percentage of a category's items considered important, clamped
	// into [MinStories, MaxStories].
	Percentage float64 `yaml:"percentage"`
	MinStories int     `yaml:"min_stories"`
	MaxStories int     `yaml:"max_stories"`
}

type DedupConfig struct {
	TitleThreshold    float64 `yaml:"title_threshold"`
	SemanticEnabled   bool    `yaml:"semantic_enabled"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
}

type EnrichmentConfig struct {
	Enabled              bool `yaml:"enabled"`
	ScrapingDelaySeconds int  `yaml:"scraping_delay_seconds"`
	// Sources maps a hostname to the CSS selector holding the article
	// body on that site. Domains without an entry are not scraped.
	Sources map[string]string `yaml:"sources"`
}

type Config struct {
	// Timezone used for ISO week boundaries.
	Timezone   string `yaml:"timezone"`
	BaseFolder string `yaml:"base_folder"`

	// Categories maps a category label to its feed URL.
	Categories map[string]string `yaml:"categories"`

	RetryCount            int `yaml:"retry_count"`
	RetryDelaySeconds     int `yaml:"retry_delay_seconds"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	FeedDelaySeconds      int `yaml:"feed_delay_seconds"`

	GeminiModel    string `yaml:"gemini_model"`
	EmbeddingModel string `yaml:"embedding_model"`

	Ranking    RankingConfig    `yaml:"ranking"`
	Dedup      DedupConfig      `yaml:"dedup"`
	Enrichment EnrichmentConfig `yaml:"content_enrichment"`

	// Credentials, from the environment only.
	GeminiAPIKey   string `yaml:"-"`
	MailgunDomain  string `yaml:"-"`
	MailgunAPIKey  string `yaml:"-"`
	SenderName     string `yaml:"-"`
	SenderEmail    string `yaml:"-"`
	RecipientEmail string `yaml:"-"`
}

// Load reads the YAML file at path, applies defaults and pulls
// credentials from the environment.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := &Config{
		Timezone:              "Europe/Vilnius",
		BaseFolder:            "weekly_news",
		RetryCount:            3,
		RetryDelaySeconds:     2,
		RequestTimeoutSeconds: 30,
		FeedDelaySeconds:      2,
		GeminiModel:           "gemini-1.5-flash",
		EmbeddingModel:        "text-embedding-004",
		Ranking: RankingConfig{
			Percentage: 0.25,
			MinStories: 7,
			MaxStories: 14,
		},
		Dedup: DedupConfig{
			TitleThreshold:    0.8,
			SemanticThreshold: 0.70,
		},
		Enrichment: EnrichmentConfig{
			ScrapingDelaySeconds: 2,
		},
	}

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.MailgunDomain = os.Getenv("MAILGUN_DOMAIN")
	cfg.MailgunAPIKey = os.Getenv("MAILGUN_API_KEY")
	cfg.SenderName = os.Getenv("SENDER_NAME")
	cfg.SenderEmail = os.Getenv("SENDER_EMAIL")
	cfg.RecipientEmail = os.Getenv("RECIPIENT_EMAIL")

	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("config has no categories")
	}
	return cfg, nil
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) FeedDelay() time.Duration {
	return time.Duration(c.FeedDelaySeconds) * time.Second
}

func (c *Config) ScrapingDelay() time.Duration {
	return time.Duration(c.Enrichment.ScrapingDelaySeconds) * time.Second
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ValidateOracle fails when the generation oracle cannot be reached.
// Checked at startup by the phases that talk to it.
func (c *Config) ValidateOracle() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// ValidateMail fails when the delivery identity is incomplete. A digest
// run never starts with missing sender credentials.
func (c *Config) ValidateMail() error {
	if c.MailgunDomain == "" {
		return fmt.Errorf("MAILGUN_DOMAIN is required")
	}
	if c.MailgunAPIKey == "" {
		return fmt.Errorf("MAILGUN_API_KEY is required")
	}
	if c.SenderName == "" {
		return fmt.Errorf("SENDER_NAME is required")
	}
	if c.SenderEmail == "" {
		return fmt.Errorf("SENDER_EMAIL is required")
	}
	if c.RecipientEmail == "" {
		return fmt.Errorf("RECIPIENT_EMAIL is required")
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-torrent-relay/parser"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
)

// Config holds relay configuration.
type Config struct {
	// Site
	BaseURL      string `yaml:"base_url"`
	TopicMarker  string `yaml:"topic_marker"`
	MaxTopics    int    `yaml:"max_topics"`
	FileSelector string `yaml:"file_selector"`
	TitlePrefix  string `yaml:"title_prefix"`
	CaptionTag   string `yaml:"caption_tag"`

	// Fetching
	Timeout         time.Duration `yaml:"timeout"`
	Delay           time.Duration `yaml:"delay"`
	RandomDelay     time.Duration `yaml:"random_delay"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	UserAgent       string        `yaml:"user_agent"`
	TopicWorkers    int           `yaml:"topic_workers"`

	// Loop
	PollInterval time.Duration `yaml:"poll_interval"`
	PacingDelay  time.Duration `yaml:"pacing_delay"`

	// Telegram
	BotToken  string `yaml:"bot_token"`
	ChannelID int64  `yaml:"channel_id"`
	OwnerID   int64  `yaml:"owner_id"`

	// Ledger
	LedgerBackend    string `yaml:"ledger_backend"`
	LedgerPath       string `yaml:"ledger_path"`
	LedgerMaxEntries int    `yaml:"ledger_max_entries"`

	// Output
	JournalFile   string `yaml:"journal_file"`
	JournalFormat string `yaml:"journal_format"` // csv, json, or dual
	HealthAddr    string `yaml:"health_addr"`
	Verbose       bool   `yaml:"verbose"`
}

// DefaultConfig returns defaults matching the 1TamilMV layout.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://www.1tamilmv.kiwi",
		TopicMarker:      parser.DefaultTopicMarker,
		MaxTopics:        parser.DefaultMaxTopics,
		FileSelector:     parser.DefaultFileSelector,
		TitlePrefix:      parser.DefaultTitlePrefix,
		CaptionTag:       "#TamilMV",
		Timeout:          10 * time.Second,
		Delay:            0,
		RandomDelay:      0,
		MaxRetries:       2,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		UserAgent:        "",
		TopicWorkers:     1,
		PollInterval:     15 * time.Minute,
		PacingDelay:      3 * time.Second,
		LedgerBackend:    LedgerMemory,
		LedgerPath:       "data",
		LedgerMaxEntries: 0,
		JournalFile:      "",
		JournalFormat:    "json",
		HealthAddr:       ":8000",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.TopicMarker == "" {
		return fmt.Errorf("topic marker cannot be empty")
	}
	if c.MaxTopics <= 0 {
		return fmt.Errorf("max topics must be positive")
	}
	if c.FileSelector == "" {
		return fmt.Errorf("file selector cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.TopicWorkers <= 0 {
		return fmt.Errorf("topic workers must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.PacingDelay < 0 {
		return fmt.Errorf("pacing delay cannot be negative")
	}
	switch c.LedgerBackend {
	case LedgerMemory:
	case LedgerSQLite:
		if c.LedgerPath == "" {
			return fmt.Errorf("ledger path cannot be empty for the sqlite backend")
		}
	default:
		return fmt.Errorf("ledger backend must be memory or sqlite")
	}
	if c.LedgerMaxEntries < 0 {
		return fmt.Errorf("ledger max entries cannot be negative")
	}
	if c.JournalFile != "" && c.JournalFormat != "csv" && c.JournalFormat != "json" && c.JournalFormat != "dual" {
		return fmt.Errorf("journal format must be csv, json, or dual")
	}

	return nil
}

// ValidateDelivery checks the settings needed to talk to Telegram.
func (c *Config) ValidateDelivery() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return fmt.Errorf("bot token cannot be empty")
	}
	if c.ChannelID == 0 {
		return fmt.Errorf("channel id cannot be zero")
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("owner id cannot be zero")
	}
	return nil
}

// HomepageRules returns the parser rules for topic discovery.
func (c *Config) HomepageRules() parser.HomepageRules {
	return parser.HomepageRules{TopicMarker: c.TopicMarker, MaxTopics: c.MaxTopics}
}

// TopicRules returns the parser rules for topic pages.
func (c *Config) TopicRules() parser.TopicRules {
	return parser.TopicRules{FileSelector: c.FileSelector, TitlePrefix: c.TitlePrefix}
}

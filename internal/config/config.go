// Package config loads the optional YAML configuration. Built-in defaults are overridden by
// <name>.yaml, which is itself overridden by <name>.local.yaml; missing files are skipped.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/poitiers-events/internal/logger"
	"github.com/pfrederiksen/poitiers-events/internal/telemetry"
)

// DefaultPath is looked up in the working directory when --config is not given.
const DefaultPath = "poitiers-events.yaml"

// EMFStartLayout is the layout of emf.start.
const EMFStartLayout = "2006-01-02"

type HTTP struct {
	Timeout      time.Duration `yaml:"timeout"`
	RetryCount   int           `yaml:"retry_count"`
	RetryWait    time.Duration `yaml:"retry_wait"`
	RetryMaxWait time.Duration `yaml:"retry_max_wait"`
}

type EMF struct {
	Start string `yaml:"start"` // YYYY-MM-DD, empty means today
	Days  int    `yaml:"days"`
}

// Source tunes one extractor. A nil Enabled means enabled.
type Source struct {
	Enabled *bool         `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Twitter holds OAuth 1.0a credentials. They are only read from the environment.
type Twitter struct {
	APIKey       string `yaml:"-"`
	APISecret    string `yaml:"-"`
	AccessToken  string `yaml:"-"`
	AccessSecret string `yaml:"-"`
}

// Complete reports whether every credential is set.
func (t Twitter) Complete() bool {
	return t.APIKey != "" && t.APISecret != "" && t.AccessToken != "" && t.AccessSecret != ""
}

// Telegram holds the bot token and target chat. They are only read from the environment.
type Telegram struct {
	BotToken string `yaml:"-"`
	ChatID   string `yaml:"-"`
}

// Complete reports whether both values are set.
func (t Telegram) Complete() bool {
	return t.BotToken != "" && t.ChatID != ""
}

type Config struct {
	Output       string            `yaml:"output"`
	Timezone     string            `yaml:"timezone"`
	UserAgent    string            `yaml:"user_agent"`
	LogLevel     string            `yaml:"log_level"`
	HTTP         HTTP              `yaml:"http"`
	RequestDelay time.Duration     `yaml:"request_delay"`
	HistoryDB    string            `yaml:"history_db"`
	MetricsFile  string            `yaml:"metrics_file"`
	Telemetry    telemetry.Config  `yaml:"telemetry"`
	EMF          EMF               `yaml:"emf"`
	Sources      map[string]Source `yaml:"sources"`
	Twitter      Twitter           `yaml:"-"`
	Telegram     Telegram          `yaml:"-"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Output:    "events.json",
		Timezone:  "Europe/Paris",
		UserAgent: "Mozilla/5.0 (compatible; poitiers-events/1.0)",
		LogLevel:  "INFO",
		HTTP: HTTP{
			Timeout:      30 * time.Second,
			RetryWait:    time.Second,
			RetryMaxWait: 10 * time.Second,
		},
		RequestDelay: 500 * time.Millisecond,
		EMF:          EMF{Days: 28},
		Sources:      map[string]Source{},
	}
}

func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}

// LocalPath returns the override file read after path.
func LocalPath(path string) string {
	prefix, ext := splitExt(path)
	return prefix + ".local" + ext
}

// Load reads path and its .local override on top of Default, then fills the Twitter and
// Telegram credentials from the environment and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	for _, name := range []string{path, LocalPath(path)} {
		layer, found, err := readFile(name)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging %s: %w", name, err)
		}
		logger.Debug("configuration file loaded", logger.Fields{"path": name})
	}

	cfg.Twitter = Twitter{
		APIKey:       os.Getenv("TWITTER_API_KEY"),
		APISecret:    os.Getenv("TWITTER_API_SECRET"),
		AccessToken:  os.Getenv("TWITTER_ACCESS_TOKEN"),
		AccessSecret: os.Getenv("TWITTER_ACCESS_SECRET"),
	}

	cfg.Telegram = Telegram{
		BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID:   os.Getenv("TELEGRAM_CHAT_ID"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(name string) (Config, bool, error) {
	var layer Config
	if name == "" {
		return layer, false, nil
	}
	b, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return layer, false, nil
	}
	if err != nil {
		return layer, false, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &layer); err != nil {
		return layer, false, fmt.Errorf("parse yaml %s: %w", name, err)
	}
	return layer, true, nil
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if c.Output == "" {
		return errors.New("output must not be empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.HTTP.Timeout < 0 || c.RequestDelay < 0 {
		return errors.New("durations must not be negative")
	}
	if c.HTTP.RetryCount < 0 {
		return fmt.Errorf("http.retry_count must be >= 0, got %d", c.HTTP.RetryCount)
	}
	if c.EMF.Days < 0 {
		return fmt.Errorf("emf.days must be >= 0, got %d", c.EMF.Days)
	}
	if c.EMF.Start != "" {
		if _, err := time.Parse(EMFStartLayout, c.EMF.Start); err != nil {
			return fmt.Errorf("invalid emf.start %q: %w", c.EMF.Start, err)
		}
	}
	for name, src := range c.Sources {
		if src.Timeout < 0 {
			return fmt.Errorf("sources.%s.timeout must not be negative", name)
		}
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EMFStart returns emf.start in the configured zone, or the zero time when unset.
func (c *Config) EMFStart() time.Time {
	if c.EMF.Start == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(EMFStartLayout, c.EMF.Start, c.Location())
	if err != nil {
		return time.Time{}
	}
	return t
}

// SourceEnabled reports whether the named extractor should run.
func (c *Config) SourceEnabled(name string) bool {
	src, ok := c.Sources[name]
	if !ok || src.Enabled == nil {
		return true
	}
	return *src.Enabled
}

// SourceTimeout returns the overall deadline of the named extractor, zero for none.
func (c *Config) SourceTimeout(name string) time.Duration {
	return c.Sources[name].Timeout
}

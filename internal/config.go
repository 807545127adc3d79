package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Sync    SyncConfig        `yaml:"sync"`
	Journal JournalConfig     `yaml:"journal"`
	Watch   WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	return c.Watch.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatText
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatText, LogFormatJSON)),
	)
}

// SyncConfig holds the reconciliation settings.
type SyncConfig struct {
	TargetDirectory string `yaml:"target_directory"`
	IndexFilePath   string `yaml:"index_file_path"`
	FindString      string `yaml:"find_string"`
	ReplaceString   string `yaml:"replace_string"`
}

// Validate validates the sync configuration. An empty find string would
// match between every character, so it is rejected.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TargetDirectory, validation.Required),
		validation.Field(&c.IndexFilePath, validation.Required),
		validation.Field(&c.FindString, validation.Required),
		validation.Field(&c.ReplaceString, validation.Required),
	)
}

// SelfFeeding reports whether the replacement reintroduces the find string,
// in which case every run rewrites the documents again.
func (c *SyncConfig) SelfFeeding() bool {
	return c.ReplaceString != c.FindString && strings.Contains(c.ReplaceString, c.FindString)
}

// JournalConfig holds the run journal location. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether runs should be journaled.
func (c *JournalConfig) Enabled() bool {
	return c.Path != ""
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatText,
		},
		Sync: SyncConfig{
			TargetDirectory: "docs/wiki",
			IndexFilePath:   "docs/index.md",
			FindString:      "/wiki/",
			ReplaceString:   "/ar-omega/wiki/",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

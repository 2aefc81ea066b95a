// Package config provides configuration loading from environment variables
// and an optional TOML file.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"

	"github.com/maauso/audiotoolbox/internal/archive"
)

// DefaultFile is read when AUDIOTOOLBOX_CONFIG is unset and the file exists.
const DefaultFile = "audiotoolbox.toml"

// Static errors for configuration validation.
var (
	// ErrInvalidTimezone is returned when a timezone name cannot be loaded.
	ErrInvalidTimezone = errors.New("config: invalid timezone")
	// ErrInvalidArchiveFormat is returned for an unknown ARCHIVE_FORMAT.
	ErrInvalidArchiveFormat = errors.New("config: invalid ARCHIVE_FORMAT")
	// ErrInvalidValue wraps validator failures.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Collection settings
	WorkDir     string `env:"WORK_DIR, default=." toml:"work_dir" json:"work_dir" validate:"required"`
	OutputDir   string `env:"OUTPUT_DIR" toml:"output_dir" json:"output_dir"`
	DatePattern string `env:"DATE_PATTERN" toml:"date_pattern" json:"date_pattern"`

	// Grouping settings
	ReferenceTimezone string `env:"REFERENCE_TIMEZONE, default=Asia/Shanghai" toml:"reference_timezone" json:"reference_timezone" validate:"required"`
	Timezone          string `env:"TIMEZONE, default=Asia/Shanghai" toml:"timezone" json:"timezone" validate:"required"`
	CutoffHour        int    `env:"CUTOFF_HOUR, default=4" toml:"cutoff_hour" json:"cutoff_hour" validate:"min=0,max=23"`

	// Processing settings
	Workers            int     `env:"WORKERS, default=4" toml:"workers" json:"workers" validate:"min=1,max=16"`
	SilenceThresholdDB float64 `env:"SILENCE_THRESHOLD_DB, default=-55" toml:"silence_threshold_db" json:"silence_threshold_db" validate:"max=0"`
	SilenceMinDuration float64 `env:"SILENCE_MIN_DURATION, default=0.1" toml:"silence_min_duration" json:"silence_min_duration" validate:"gt=0"`
	ArchiveFormat      string  `env:"ARCHIVE_FORMAT, default=zip" toml:"archive_format" json:"archive_format" validate:"oneof=zip tar.gz tgz tar.zst 7z"`

	// Tool settings
	FFmpegPath   string `env:"FFMPEG_PATH" toml:"ffmpeg_path" json:"ffmpeg_path"`
	SevenZipPath string `env:"SEVENZIP_PATH" toml:"sevenzip_path" json:"sevenzip_path"`

	// History settings
	HistoryDB string `env:"HISTORY_DB" toml:"history_db" json:"history_db"`

	// Server settings
	Port  int  `env:"PORT, default=8080" toml:"port" json:"port" validate:"min=1,max=65535"`
	Watch bool `env:"WATCH, default=false" toml:"watch" json:"watch"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" toml:"log_format" json:"log_format" validate:"oneof=text json"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" toml:"log_level" json:"log_level"`                                  // "debug", "info", "warn", "error"

	referenceLoc *time.Location
	targetLoc    *time.Location
}

// Load reads configuration from the environment using go-envconfig, then
// fills every setting whose variable is unset from the TOML file named by
// AUDIOTOOLBOX_CONFIG (or ./audiotoolbox.toml when present).
func Load() (*Config, error) {
	return LoadWith(context.Background(), envconfig.OsLookuper())
}

// LoadWith is Load with an explicit variable source.
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	path, explicit := lookuper.Lookup("AUDIOTOOLBOX_CONFIG")
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.overlayFile(path, explicit, lookuper); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFile copies values from the TOML file at path into settings that
// no environment variable set. A missing default file is not an error.
func (c *Config) overlayFile(path string, explicit bool, lookuper envconfig.Lookuper) error {
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var file Config
	meta, err := toml.DecodeFile(path, &file)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	set := func(envName, tomlKey string, apply func()) {
		if _, ok := lookuper.Lookup(envName); ok {
			return
		}
		if meta.IsDefined(tomlKey) {
			apply()
		}
	}
	set("WORK_DIR", "work_dir", func() { c.WorkDir = file.WorkDir })
	set("OUTPUT_DIR", "output_dir", func() { c.OutputDir = file.OutputDir })
	set("DATE_PATTERN", "date_pattern", func() { c.DatePattern = file.DatePattern })
	set("REFERENCE_TIMEZONE", "reference_timezone", func() { c.ReferenceTimezone = file.ReferenceTimezone })
	set("TIMEZONE", "timezone", func() { c.Timezone = file.Timezone })
	set("CUTOFF_HOUR", "cutoff_hour", func() { c.CutoffHour = file.CutoffHour })
	set("WORKERS", "workers", func() { c.Workers = file.Workers })
	set("SILENCE_THRESHOLD_DB", "silence_threshold_db", func() { c.SilenceThresholdDB = file.SilenceThresholdDB })
	set("SILENCE_MIN_DURATION", "silence_min_duration", func() { c.SilenceMinDuration = file.SilenceMinDuration })
	set("ARCHIVE_FORMAT", "archive_format", func() { c.ArchiveFormat = file.ArchiveFormat })
	set("FFMPEG_PATH", "ffmpeg_path", func() { c.FFmpegPath = file.FFmpegPath })
	set("SEVENZIP_PATH", "sevenzip_path", func() { c.SevenZipPath = file.SevenZipPath })
	set("HISTORY_DB", "history_db", func() { c.HistoryDB = file.HistoryDB })
	set("PORT", "port", func() { c.Port = file.Port })
	set("WATCH", "watch", func() { c.Watch = file.Watch })
	set("LOG_FORMAT", "log_format", func() { c.LogFormat = file.LogFormat })
	set("LOG_LEVEL", "log_level", func() { c.LogLevel = file.LogLevel })
	return nil
}

// Validate checks field ranges and resolves the timezones.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}
	if _, err := archive.ParseFormat(c.ArchiveFormat); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidArchiveFormat, c.ArchiveFormat)
	}
	ref, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.ReferenceTimezone)
	}
	target, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	c.referenceLoc, c.targetLoc = ref, target
	return nil
}

// ReferenceLocation is the zone filename timestamps are recorded in.
func (c *Config) ReferenceLocation() *time.Location {
	if c.referenceLoc == nil {
		return time.UTC
	}
	return c.referenceLoc
}

// TargetLocation is the zone session days are computed in.
func (c *Config) TargetLocation() *time.Location {
	if c.targetLoc == nil {
		return time.UTC
	}
	return c.targetLoc
}

// EffectiveOutputDir returns OutputDir, defaulting to WorkDir.
func (c *Config) EffectiveOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.WorkDir
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs. Logs go to stderr so
// command output on stdout stays clean.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{WorkDir: %s, OutputDir: %s, ReferenceTimezone: %s, Timezone: %s, CutoffHour: %d, Workers: %d, ArchiveFormat: %s, HistoryDB: %s, Port: %d, Watch: %t, LogFormat: %s, LogLevel: %s}",
		c.WorkDir,
		c.EffectiveOutputDir(),
		c.ReferenceTimezone,
		c.Timezone,
		c.CutoffHour,
		c.Workers,
		c.ArchiveFormat,
		c.HistoryDB,
		c.Port,
		c.Watch,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

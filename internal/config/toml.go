// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when neither a flag nor the config file sets a value.
const (
	DefaultFilterDebounce = 150 * time.Millisecond
	DefaultResizeDebounce = 250 * time.Millisecond
	DefaultAddr           = ":8080"
	DefaultLogLevel       = "warn"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Race   RaceConfig   `toml:"race"`
	View   ViewConfig   `toml:"view"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// RaceConfig selects the race loaded when no selector flag is given.
type RaceConfig struct {
	Default *string `toml:"default"`
	File    *string `toml:"file"`
}

// ViewConfig maps viewer settings.
type ViewConfig struct {
	FilterDebounce *Duration `toml:"filter-debounce"`
	ResizeDebounce *Duration `toml:"resize-debounce"`
	Timezone       *string   `toml:"timezone"`
}

// ServerConfig maps API server settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
}

// Duration is a time.Duration written as "150ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	if v < 0 {
		return fmt.Errorf("invalid duration %q: negative", text)
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log level %q", name)
	}
}

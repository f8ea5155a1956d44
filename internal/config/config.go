// Package config loads threadctl runtime configuration from TOML.
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	// MainThreadClass names the class instantiated once at Init to stand in
	// for the thread that was running before any managed thread started.
	MainThreadClass string
	// CleanupWarnings toggles warn-level logging of shutdown join failures.
	CleanupWarnings bool
	Log             LogConfig
}

type LogConfig struct {
	Level     string
	Timestamp bool
	NoColor   bool
}

func DefaultConfig() Config {
	return Config{
		MainThreadClass: "System.Threading.Thread",
		CleanupWarnings: true,
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
	}
}

// fileConfig maps threadctl.toml keys onto runtime settings.
type fileConfig struct {
	MainThreadClass string `toml:"main_thread_class"`
	CleanupWarnings bool   `toml:"cleanup_warnings"`
	LogLevel        string `toml:"log_level"`
	LogTimestamp    bool   `toml:"log_timestamp"`
	LogNoColor      bool   `toml:"log_nocolor"`
}

// Load overlays keys the file defines onto the defaults; omitted keys keep
// their default values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load threadctl config: %w", err)
	}

	if meta.IsDefined("main_thread_class") {
		cfg.MainThreadClass = strings.TrimSpace(raw.MainThreadClass)
	}
	if meta.IsDefined("cleanup_warnings") {
		cfg.CleanupWarnings = raw.CleanupWarnings
	}
	if meta.IsDefined("log_level") {
		cfg.Log.Level = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_timestamp") {
		cfg.Log.Timestamp = raw.LogTimestamp
	}
	if meta.IsDefined("log_nocolor") {
		cfg.Log.NoColor = raw.LogNoColor
	}
	if cfg.MainThreadClass == "" {
		return Config{}, fmt.Errorf("load threadctl config: main_thread_class must not be empty")
	}
	return cfg, nil
}

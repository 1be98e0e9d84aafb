package sched

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yml for the demo workload.
type Config struct {
	LogLevel     string `yaml:"log_level"`     // info (by default)
	LogFormat    string `yaml:"log_format"`    // text (by default)
	RunMS        int    `yaml:"run_ms"`        // 2000 (by default)
	BlinkMS      int    `yaml:"blink_ms"`      // AutoTimer period, 50 (by default)
	AutosaveMS   int    `yaml:"autosave_ms"`   // one-shot Timer timeout, 500 (by default)
	ResizeIdles  int    `yaml:"resize_idles"`  // Idle tasks at PriorityResize, 1 (by default)
	RepaintIdles int    `yaml:"repaint_idles"` // Idle tasks at PriorityRepaint, 2 (by default)
	TracePath    string `yaml:"trace_path"`    // CSV event trace, disabled when empty
}

// DefaultConfig is used when no config file is found.
func DefaultConfig() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		RunMS:        2000,
		BlinkMS:      50,
		AutosaveMS:   500,
		ResizeIdles:  1,
		RepaintIdles: 2,
	}
}

// Load reads YAML and overrides defaults; empty path or missing file = defaults only
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	// sanity clamps
	if cfg.RunMS <= 0 {
		cfg.RunMS = 2000
	}
	if cfg.BlinkMS < int(MinSleepPeriod) {
		cfg.BlinkMS = 50
	}
	if cfg.AutosaveMS < int(MinSleepPeriod) {
		cfg.AutosaveMS = 500
	}
	if cfg.ResizeIdles < 0 {
		cfg.ResizeIdles = 0
	}
	if cfg.RepaintIdles < 0 {
		cfg.RepaintIdles = 0
	}

	return cfg, nil
}

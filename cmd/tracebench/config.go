package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the tracebench configuration file
// (~/.config/tracebench/config.yaml). Pointer fields distinguish "not set"
// from zero values.
type Config struct {
	Threads       *int64 `yaml:"threads"`
	MemoryProfile *bool  `yaml:"memory_profile"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tracebench", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config unless the path was given explicitly.
func LoadConfig(path string, explicit bool) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig fills options from the config file when the corresponding flag
// was not explicitly set.
func applyConfig(c *cli.Command, cfg Config, o *appOptions) {
	if cfg.Threads != nil && !c.IsSet("threads") {
		o.threads = *cfg.Threads
	}
	if cfg.MemoryProfile != nil && !c.IsSet("mem-profile") {
		o.memProfile = *cfg.MemoryProfile
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		o.logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		o.logFormat = cfg.LogFormat
	}
}

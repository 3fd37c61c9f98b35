// Package config loads runtime configuration for the ScanPass CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c or --config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a, --server string          base URL of the ScanPass HTTP API
//	-t, --timeout duration       per-request timeout, video analysis included
//	    --max-video-bytes int    largest video the client will upload
//
// # JSON schema
//
// Durations accept strings like "90s" or integer nanoseconds:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "timeout": "2m",
//	  "max_video_bytes": 26214400
//	}
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds runtime settings for the ScanPass CLI.
type Config struct {
	ServerURL     string
	Timeout       time.Duration
	MaxVideoBytes int64
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.Timeout = 2 * time.Minute
	c.MaxVideoBytes = 25 << 20
}

// LoadConfig builds a Config from os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then the JSON file named by -c/--config, then the
// remaining flags in args.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url must not be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}
	return cfg, nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/scanpass/internal/flagx"
	"github.com/dmitrijs2005/scanpass/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from zero values.
type JSONConfig struct {
	ServerURL     *string         `json:"server_url"`
	Timeout       *timex.Duration `json:"timeout"`
	MaxVideoBytes *int64          `json:"max_video_bytes"`
}

// parseJSON overlays cfg with the JSON file named by -c/--config in args.
// Without such a flag nothing changes.
func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlagFrom(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if jc.ServerURL != nil {
		cfg.ServerURL = *jc.ServerURL
	}
	if jc.Timeout != nil {
		cfg.Timeout = jc.Timeout.Duration
	}
	if jc.MaxVideoBytes != nil {
		cfg.MaxVideoBytes = *jc.MaxVideoBytes
	}
	return nil
}

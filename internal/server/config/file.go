package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/scanpass/internal/flagx"
	"github.com/dmitrijs2005/scanpass/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the config file. Pointer fields tell
// an absent key apart from a zero value, so only keys present in the file
// override the defaults. Durations use timex.Duration and accept "60s" as
// well as integer nanoseconds.
type FileConfig struct {
	HTTPAddr    *string `json:"http_addr" yaml:"http_addr"`
	GRPCAddr    *string `json:"grpc_addr" yaml:"grpc_addr"`
	DatabaseDSN *string `json:"database_dsn" yaml:"database_dsn"`
	SecretKey   *string `json:"secret_key" yaml:"secret_key"`
	LogLevel    *string `json:"log_level" yaml:"log_level"`

	SessionTTL           *timex.Duration `json:"session_ttl" yaml:"session_ttl"`
	ChallengeTTL         *timex.Duration `json:"challenge_ttl" yaml:"challenge_ttl"`
	MaxPendingChallenges *int            `json:"max_pending_challenges" yaml:"max_pending_challenges"`

	SimilarityThreshold *float64 `json:"similarity_threshold" yaml:"similarity_threshold"`
	LivenessThreshold   *float64 `json:"liveness_threshold" yaml:"liveness_threshold"`
	DirectionThreshold  *float64 `json:"direction_threshold" yaml:"direction_threshold"`
	SampleFrames        *int     `json:"sample_frames" yaml:"sample_frames"`
	MinFrames           *int     `json:"min_frames" yaml:"min_frames"`
	EmbeddingDim        *int     `json:"embedding_dim" yaml:"embedding_dim"`

	ModelURI       *string `json:"model_uri" yaml:"model_uri"`
	S3RootUser     *string `json:"s3_root_user" yaml:"s3_root_user"`
	S3RootPassword *string `json:"s3_root_password" yaml:"s3_root_password"`
	S3Region       *string `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint *string `json:"s3_base_endpoint" yaml:"s3_base_endpoint"`

	AnalysisWorkers *int            `json:"analysis_workers" yaml:"analysis_workers"`
	AnalysisTimeout *timex.Duration `json:"analysis_timeout" yaml:"analysis_timeout"`
	MaxVideoBytes   *int64          `json:"max_video_bytes" yaml:"max_video_bytes"`
	ReplayWindow    *timex.Duration `json:"replay_window" yaml:"replay_window"`
	SweepInterval   *timex.Duration `json:"sweep_interval" yaml:"sweep_interval"`

	AllowVisualLogin    *bool `json:"allow_visual_login" yaml:"allow_visual_login"`
	RequireSecondFactor *bool `json:"require_second_factor" yaml:"require_second_factor"`
}

// parseFile overlays config with the file named by -c/--config in args.
// Files ending in .yaml or .yml are read as YAML, everything else as JSON.
// Having no config flag is not an error.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlagFrom(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setValue(&c.HTTPAddr, fc.HTTPAddr)
	setValue(&c.GRPCAddr, fc.GRPCAddr)
	setValue(&c.DatabaseDSN, fc.DatabaseDSN)
	setValue(&c.SecretKey, fc.SecretKey)
	setValue(&c.LogLevel, fc.LogLevel)

	setDuration(&c.SessionTTL, fc.SessionTTL)
	setDuration(&c.ChallengeTTL, fc.ChallengeTTL)
	setValue(&c.MaxPendingChallenges, fc.MaxPendingChallenges)

	setValue(&c.SimilarityThreshold, fc.SimilarityThreshold)
	setValue(&c.LivenessThreshold, fc.LivenessThreshold)
	setValue(&c.DirectionThreshold, fc.DirectionThreshold)
	setValue(&c.SampleFrames, fc.SampleFrames)
	setValue(&c.MinFrames, fc.MinFrames)
	setValue(&c.EmbeddingDim, fc.EmbeddingDim)

	setValue(&c.ModelURI, fc.ModelURI)
	setValue(&c.S3RootUser, fc.S3RootUser)
	setValue(&c.S3RootPassword, fc.S3RootPassword)
	setValue(&c.S3Region, fc.S3Region)
	setValue(&c.S3BaseEndpoint, fc.S3BaseEndpoint)

	setValue(&c.AnalysisWorkers, fc.AnalysisWorkers)
	setDuration(&c.AnalysisTimeout, fc.AnalysisTimeout)
	setValue(&c.MaxVideoBytes, fc.MaxVideoBytes)
	setDuration(&c.ReplayWindow, fc.ReplayWindow)
	setDuration(&c.SweepInterval, fc.SweepInterval)

	setValue(&c.AllowVisualLogin, fc.AllowVisualLogin)
	setValue(&c.RequireSecondFactor, fc.RequireSecondFactor)
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}

package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "SCANPASS_"

type envBinding struct {
	name string
	set  func(c *Config, v string) error
}

func envString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func envDuration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

func envInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func envFloat(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func envBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"HTTP_ADDR", envString(func(c *Config) *string { return &c.HTTPAddr })},
	{"GRPC_ADDR", envString(func(c *Config) *string { return &c.GRPCAddr })},
	{"DATABASE_DSN", envString(func(c *Config) *string { return &c.DatabaseDSN })},
	{"SECRET_KEY", envString(func(c *Config) *string { return &c.SecretKey })},
	{"LOG_LEVEL", envString(func(c *Config) *string { return &c.LogLevel })},
	{"SESSION_TTL", envDuration(func(c *Config) *time.Duration { return &c.SessionTTL })},
	{"CHALLENGE_TTL", envDuration(func(c *Config) *time.Duration { return &c.ChallengeTTL })},
	{"MAX_PENDING_CHALLENGES", envInt(func(c *Config) *int { return &c.MaxPendingChallenges })},
	{"SIMILARITY_THRESHOLD", envFloat(func(c *Config) *float64 { return &c.SimilarityThreshold })},
	{"LIVENESS_THRESHOLD", envFloat(func(c *Config) *float64 { return &c.LivenessThreshold })},
	{"DIRECTION_THRESHOLD", envFloat(func(c *Config) *float64 { return &c.DirectionThreshold })},
	{"SAMPLE_FRAMES", envInt(func(c *Config) *int { return &c.SampleFrames })},
	{"MIN_FRAMES", envInt(func(c *Config) *int { return &c.MinFrames })},
	{"EMBEDDING_DIM", envInt(func(c *Config) *int { return &c.EmbeddingDim })},
	{"MODEL_URI", envString(func(c *Config) *string { return &c.ModelURI })},
	{"S3_ROOT_USER", envString(func(c *Config) *string { return &c.S3RootUser })},
	{"S3_ROOT_PASSWORD", envString(func(c *Config) *string { return &c.S3RootPassword })},
	{"S3_REGION", envString(func(c *Config) *string { return &c.S3Region })},
	{"S3_BASE_ENDPOINT", envString(func(c *Config) *string { return &c.S3BaseEndpoint })},
	{"ANALYSIS_WORKERS", envInt(func(c *Config) *int { return &c.AnalysisWorkers })},
	{"ANALYSIS_TIMEOUT", envDuration(func(c *Config) *time.Duration { return &c.AnalysisTimeout })},
	{"MAX_VIDEO_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		c.MaxVideoBytes = n
		return nil
	}},
	{"REPLAY_WINDOW", envDuration(func(c *Config) *time.Duration { return &c.ReplayWindow })},
	{"SWEEP_INTERVAL", envDuration(func(c *Config) *time.Duration { return &c.SweepInterval })},
	{"ALLOW_VISUAL_LOGIN", envBool(func(c *Config) *bool { return &c.AllowVisualLogin })},
	{"REQUIRE_SECOND_FACTOR", envBool(func(c *Config) *bool { return &c.RequireSecondFactor })},
}

// parseEnv overlays config with SCANPASS_* variables found through lookup.
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	for _, b := range envBindings {
		v, ok := lookup(EnvPrefix + b.name)
		if !ok {
			continue
		}
		if err := b.set(config, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, b.name, err)
		}
	}
	return nil
}

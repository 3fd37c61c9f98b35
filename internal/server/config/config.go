// Package config handles configuration for the ScanPass server: defaults,
// an optional JSON or YAML file, command-line flags and SCANPASS_*
// environment variables, applied in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Config holds runtime settings for the ScanPass server.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	DatabaseDSN string
	SecretKey   string
	LogLevel    string

	SessionTTL           time.Duration
	ChallengeTTL         time.Duration
	MaxPendingChallenges int

	SimilarityThreshold float64
	LivenessThreshold   float64
	DirectionThreshold  float64
	SampleFrames        int
	MinFrames           int
	EmbeddingDim        int

	// ModelURI points at the feature extractor weights: a local path or
	// s3://bucket/key. Empty selects the built-in seeded projection.
	ModelURI       string
	S3RootUser     string
	S3RootPassword string
	S3Region       string
	S3BaseEndpoint string

	AnalysisWorkers int
	AnalysisTimeout time.Duration
	MaxVideoBytes   int64
	ReplayWindow    time.Duration
	SweepInterval   time.Duration

	AllowVisualLogin    bool
	RequireSecondFactor bool
}

// DefaultSecretKey is the development signing key LoadDefaults sets.
const DefaultSecretKey = "secretKey"

// LoadDefaults populates Config with development defaults.
// NOTE: SecretKey must be overridden outside of development.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = "scanpass.db"
	c.SecretKey = DefaultSecretKey
	c.LogLevel = "info"

	c.SessionTTL = 2 * time.Minute
	c.ChallengeTTL = 60 * time.Second
	c.MaxPendingChallenges = 5

	c.SimilarityThreshold = 0.60
	c.LivenessThreshold = 1.5
	c.DirectionThreshold = 0.3
	c.SampleFrames = 10
	c.MinFrames = 3
	c.EmbeddingDim = 1280

	c.ModelURI = ""
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"

	c.AnalysisWorkers = 4
	c.AnalysisTimeout = 30 * time.Second
	c.MaxVideoBytes = 25 << 20
	c.ReplayWindow = 10 * time.Minute
	c.SweepInterval = time.Minute

	c.AllowVisualLogin = true
	c.RequireSecondFactor = false
}

// UsesDefaultSecret reports whether sessions are signed with
// DefaultSecretKey, which anyone reading the source can forge tokens with.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret_key must not be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("session_ttl must be positive"))
	}
	if c.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("challenge_ttl must be positive"))
	}
	if c.MinFrames < 2 {
		errs = append(errs, errors.New("min_frames must be at least 2"))
	}
	if c.SampleFrames < c.MinFrames {
		errs = append(errs, fmt.Errorf("sample_frames (%d) must not be below min_frames (%d)", c.SampleFrames, c.MinFrames))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, errors.New("embedding_dim must be positive"))
	}
	if c.AnalysisWorkers <= 0 {
		errs = append(errs, errors.New("analysis_workers must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("sweep_interval must be positive"))
	}
	if c.ReplayWindow <= 0 {
		errs = append(errs, errors.New("replay_window must be positive"))
	}
	if c.MaxVideoBytes < minVideoBytes {
		errs = append(errs, fmt.Errorf("max_video_bytes must be at least %d", minVideoBytes))
	}
	return errors.Join(errs...)
}

// minVideoBytes mirrors the smallest upload the API accepts.
const minVideoBytes = 1000

// LoadConfig builds a Config from os.Args and the process environment.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:], os.LookupEnv)
}

// Load applies defaults, then the config file named by -c/--config, then
// the remaining flags in args and finally environment variables.
func Load(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

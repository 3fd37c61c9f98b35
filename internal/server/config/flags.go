package config

import (
	"io"

	"github.com/dmitrijs2005/scanpass/internal/flagx"
	"github.com/spf13/pflag"
)

// newFlagSet declares every server flag bound to the fields of config, so
// flag defaults are whatever the earlier layers produced.
func newFlagSet(config *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("scanpass-server", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&config.HTTPAddr, "http-addr", "a", config.HTTPAddr, "HTTP API listen address")
	fs.StringVarP(&config.GRPCAddr, "grpc-addr", "g", config.GRPCAddr, "gRPC health listen address")
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "SQLite path or postgres:// DSN")
	fs.StringVarP(&config.SecretKey, "secret-key", "s", config.SecretKey, "HMAC secret for session tokens")
	fs.StringVarP(&config.LogLevel, "log-level", "l", config.LogLevel, "debug, info, warn or error")

	fs.DurationVarP(&config.SessionTTL, "session-ttl", "t", config.SessionTTL, "session lifetime")
	fs.DurationVar(&config.ChallengeTTL, "challenge-ttl", config.ChallengeTTL, "challenge lifetime")
	fs.IntVar(&config.MaxPendingChallenges, "max-pending-challenges", config.MaxPendingChallenges, "pending challenges kept per user")

	fs.Float64Var(&config.SimilarityThreshold, "similarity-threshold", config.SimilarityThreshold, "minimum cosine similarity")
	fs.Float64Var(&config.LivenessThreshold, "liveness-threshold", config.LivenessThreshold, "minimum motion score")
	fs.Float64Var(&config.DirectionThreshold, "direction-threshold", config.DirectionThreshold, "minimum direction score")
	fs.IntVar(&config.SampleFrames, "sample-frames", config.SampleFrames, "frames sampled per video")
	fs.IntVar(&config.MinFrames, "min-frames", config.MinFrames, "minimum decodable frames")
	fs.IntVar(&config.EmbeddingDim, "embedding-dim", config.EmbeddingDim, "embedding dimension")

	fs.StringVarP(&config.ModelURI, "model-uri", "m", config.ModelURI, "feature extractor weights: path or s3://bucket/key")
	fs.StringVarP(&config.S3RootUser, "s3-user", "u", config.S3RootUser, "S3 access key")
	fs.StringVarP(&config.S3RootPassword, "s3-password", "p", config.S3RootPassword, "S3 secret key")
	fs.StringVarP(&config.S3Region, "s3-region", "r", config.S3Region, "S3 region")
	fs.StringVarP(&config.S3BaseEndpoint, "s3-endpoint", "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.IntVarP(&config.AnalysisWorkers, "analysis-workers", "w", config.AnalysisWorkers, "concurrent video analyses")
	fs.DurationVar(&config.AnalysisTimeout, "analysis-timeout", config.AnalysisTimeout, "per-request analysis budget")
	fs.Int64Var(&config.MaxVideoBytes, "max-video-bytes", config.MaxVideoBytes, "largest accepted upload")
	fs.DurationVar(&config.ReplayWindow, "replay-window", config.ReplayWindow, "how long submitted video digests are remembered")
	fs.DurationVar(&config.SweepInterval, "sweep-interval", config.SweepInterval, "expired record sweep period")

	fs.BoolVar(&config.AllowVisualLogin, "allow-visual-login", config.AllowVisualLogin, "enable passwordless visual login")
	fs.BoolVar(&config.RequireSecondFactor, "require-second-factor", config.RequireSecondFactor, "require visual authentication for secure data")

	return fs
}

// allowedArgs lists every spelling of the flags in fs, for flagx.FilterArgs.
func allowedArgs(fs *pflag.FlagSet) []string {
	var allowed []string
	fs.VisitAll(func(f *pflag.Flag) {
		allowed = append(allowed, "--"+f.Name)
		if f.Shorthand != "" {
			allowed = append(allowed, "-"+f.Shorthand)
		}
	})
	return allowed
}

// parseFlags overlays config with the command-line flags in args. Arguments
// that are not server flags, such as -c/--config, are filtered out first.
func parseFlags(config *Config, args []string) error {
	fs := newFlagSet(config)
	return fs.Parse(flagx.FilterArgs(args, allowedArgs(fs)))
}

package config

import (
	"io"

	"github.com/dmitrijs2005/scanpass/internal/flagx"
	"github.com/spf13/pflag"
)

var allowedFlags = []string{"-a", "--server", "-t", "--timeout", "--max-video-bytes"}

// parseFlags overlays cfg with the command-line flags in args. Arguments
// the client does not know, such as -c/--config, are filtered out first.
func parseFlags(cfg *Config, args []string) error {
	fs := pflag.NewFlagSet("scanpass-client", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&cfg.ServerURL, "server", "a", cfg.ServerURL, "base URL of the ScanPass API")
	fs.DurationVarP(&cfg.Timeout, "timeout", "t", cfg.Timeout, "per-request timeout")
	fs.Int64Var(&cfg.MaxVideoBytes, "max-video-bytes", cfg.MaxVideoBytes, "largest video to upload")

	return fs.Parse(flagx.FilterArgs(args, allowedFlags))
}

// Package logging is the structured logger every server component takes.
// SlogLogger backs it with log/slog; Discard silences it in tests.
package logging

import "context"

// Logger writes leveled records with key/value attributes. The context is
// handed through to the handler so request-scoped values can be attached:
//
//	log.Info(ctx, "challenge issued", "user_id", userID, "direction", dir)
type Logger interface {
	// Debug carries per-frame scores and flow components.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for conditions the server survives, such as an insecure
	// default setting or a dropped challenge.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a Logger that adds args to every record.
	With(args ...any) Logger
}

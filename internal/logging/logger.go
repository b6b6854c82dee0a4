// Package logging defines the structured logger used across chronovault and
// its log/slog implementation.
package logging

import "context"

// Logger takes a message plus alternating key/value arguments:
//
//	log.Info(ctx, "capsule created", "capsule_id", id, "files", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With binds key/value pairs to every record of the returned logger.
	With(args ...any) Logger
}

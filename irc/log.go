package irc

import (
	"io"
	"log/slog"
)

// LevelTrace is below slog.LevelDebug. Every line read from or written to
// the wire is logged at this level.
const LevelTrace = slog.Level(-8)

// nopLogger discards everything. It is the default when no logger is configured.
func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

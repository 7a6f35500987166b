// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Level controls the minimum level of the default logger.
var Level = new(slog.LevelVar)

// New returns a JSON logger writing to w at Level.
func New(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: Level}))
}

// Init installs a stderr JSON logger as the slog default. Verbose enables
// debug output; otherwise only warnings and errors are emitted so log lines
// do not interleave with terminal output.
func Init(verbose bool) *slog.Logger {
	if verbose {
		Level.Set(slog.LevelDebug)
	} else {
		Level.Set(slog.LevelWarn)
	}
	l := New(os.Stderr)
	slog.SetDefault(l)
	return l
}

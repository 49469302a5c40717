// Package logger builds the structured logger shared by the CLI and the server.
// Verbose mode lowers the level to debug so discovery skips and retrieval
// details become visible.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler
type Options struct {
	Verbose bool
	// Format is "text" (default) or "json"
	Format string
	Output io.Writer
}

// New returns a logger writing to Output (stderr by default)
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// Setup builds a logger and installs it as the process default
func Setup(opts Options) *slog.Logger {
	l := New(opts)
	slog.SetDefault(l)
	return l
}

// Package logging constructs the slog logger the pipeline components
// receive explicitly; nothing here mutates process-global state.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options describes logger construction parameters.
type Options struct {
	// Verbose lowers the level to debug.
	Verbose bool

	// Writer overrides the destination; stderr when nil.
	Writer io.Writer
}

// New constructs a slog logger using the provided options.
func New(opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

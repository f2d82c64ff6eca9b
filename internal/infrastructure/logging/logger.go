package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"
)

// Options configures a command logger.
type Options struct {
	Level slog.Level

	// Output defaults to os.Stderr
	Output io.Writer

	// JSON forces the JSON handler even on a terminal
	JSON bool
}

// New creates the CLI logger. Output that is a terminal gets the text
// handler; pipes and files get JSON so scripted runs can parse it.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: opts.Level}

	var handler slog.Handler
	if !opts.JSON && IsTerminal(out) {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

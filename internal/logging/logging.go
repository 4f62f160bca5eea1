package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options selects the default logger's level and encoding.
type Options struct {
	Level  slog.Level
	JSON   bool
	Output io.Writer // stderr when nil
}

// Init configures the process-wide default slog logger.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	Configure(Options{Level: level})
}

// Configure installs a default logger built from opts and returns it.
func Configure(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

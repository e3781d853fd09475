package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// LoggerOptions controls where log records go.
type LoggerOptions struct {
	File  string
	Level slog.Level
	// Console is the human-readable sink; nil means os.Stderr.
	Console io.Writer
	// ConsoleLevel overrides Level for the console sink only. The live
	// progress view raises it so per-row warnings don't tear the display.
	ConsoleLevel *slog.Level
}

// SetupLogger creates a dual-output logger: text to the console, JSON to a file.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(opts LoggerOptions) (*slog.Logger, func() error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := opts.Level
	if opts.ConsoleLevel != nil {
		consoleLevel = *opts.ConsoleLevel
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel})

	if opts.File == "" {
		return slog.New(consoleHandler), func() error { return nil }
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Console-only is still usable
		logger := slog.New(consoleHandler)
		logger.Error("failed to open log file, using console only", "error", err, "file", opts.File)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: opts.Level})
	logger := slog.New(slogmulti.Fanout(consoleHandler, fileHandler))

	return logger, file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}

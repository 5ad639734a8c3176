package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// newLogger builds the process logger. Verbosity 0 shows warnings, 1 adds
// info and 2 or more adds debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// teeLogger also writes to file when one is set. The file records at least
// info so attack events are kept even at verbosity 0.
func teeLogger(console, file io.Writer, verbose int) *slog.Logger {
	if file == nil {
		return newLogger(console, verbose)
	}
	return newLogger(io.MultiWriter(console, file), max(verbose, 1))
}

func openLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	return f, nil
}

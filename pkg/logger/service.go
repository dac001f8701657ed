package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// NewService builds the logger used by long-running algoqa services: pretty
// output on stdout and, when logFile is set, JSON records appended to that
// file as well. The returned close func must be called on shutdown.
func NewService(debug bool, logFile string) (*slog.Logger, func() error, error) {
	pretty := New(WithDebug(debug), WithPretty(true))
	if logFile == "" {
		return pretty, func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := New(WithDebug(debug), WithJSON(true), WithWriter(f))
	return Multi(pretty, file), f.Close, nil
}

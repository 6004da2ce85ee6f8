// Package logging builds the slog logger shared by the CLI and drivers.
package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Prefix tags every line written by the CLI.
const Prefix = "tsexports"

// New returns a logger writing human-readable lines to w. Records below
// level are dropped.
func New(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		Prefix: Prefix,
		Level:  lvl,
	})
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

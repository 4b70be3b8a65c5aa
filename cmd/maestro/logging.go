// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a slog logger backed by a charmbracelet console
// handler. Verbose lowers the level to debug and turns on timestamps.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	opts := log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: verbose,
		TimeFormat:      time.TimeOnly,
		Prefix:          "maestro",
	}
	if verbose {
		opts.Level = log.DebugLevel
	}
	return slog.New(log.NewWithOptions(w, opts))
}

// Package logging builds the structured logger shared by every devsession
// component.
//
// There is one root logger per process. Components receive it as a
// *log.Logger and derive their own prefix with WithPrefix, so every line
// names the subsystem it came from ("ports", "reaper", "session", ...).
package logging

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Options controls the root logger.
type Options struct {
	// Verbose enables debug output.
	Verbose bool

	// JSON switches to one JSON object per line, for --json callers.
	JSON bool

	// Output defaults to os.Stderr. Stdout is left to the children, whose
	// streams are inherited.
	Output io.Writer
}

// New creates the root logger.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	level := log.InfoLevel
	if opts.Verbose {
		level = log.DebugLevel
	}

	formatter := log.TextFormatter
	if opts.JSON {
		formatter = log.JSONFormatter
	}

	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// Discard returns a logger that drops everything. Constructors fall back
// to it when handed a nil logger.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Named returns a child logger for a subsystem. A nil parent yields a
// discarding logger.
func Named(parent *log.Logger, subsystem string) *log.Logger {
	if parent == nil {
		return Discard()
	}
	return parent.WithPrefix(subsystem)
}

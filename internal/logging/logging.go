// Package logging configures the global slog logger for the lanclip binary.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
	"github.com/thejerf/suture/v4"
)

// Format selects the log output format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat converts a string to a Format, returning FormatAuto for unknown values.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "tint", "human":
		return FormatText
	case "json":
		return FormatJSON
	default:
		return FormatAuto
	}
}

// ParseLevel converts a string to a slog.Level. ok is false for empty or
// unknown input, in which case Info is returned.
func ParseLevel(s string) (level slog.Level, ok bool) {
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, false
	}
	return level, true
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// NewHandler returns the handler Setup installs, writing to w.
func NewHandler(w io.Writer, format Format, level slog.Level) slog.Handler {
	if format == FormatText || (format == FormatAuto && IsTTY(w)) {
		return tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

// Options describes how the daemon logs.
type Options struct {
	Format Format
	// Level is a level name; empty selects Debug in the foreground and
	// Info otherwise.
	Level string
	// Foreground is set when a person is watching the output.
	Foreground bool
}

// level resolves the effective level.
func (o Options) level() slog.Level {
	if l, ok := ParseLevel(o.Level); ok {
		return l
	}
	if o.Foreground {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// Setup installs the global slog logger writing to stderr and returns it.
func Setup(o Options) *slog.Logger {
	log := slog.New(NewHandler(os.Stderr, o.Format, o.level()))
	slog.SetDefault(log)
	return log
}

// SupervisorHook logs suture events: failures and backoff at WARN, the rest
// at DEBUG.
func SupervisorHook(e suture.Event) {
	switch e.Type() {
	case suture.EventTypeServiceTerminate, suture.EventTypeBackoff:
		slog.Warn("supervisor", "event", e.String())
	case suture.EventTypeServicePanic:
		slog.Error("supervisor", "event", e.String())
	default:
		slog.Debug("supervisor", "event", e.String())
	}
}

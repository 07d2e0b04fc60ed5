// Package logging configures slog for the tbl command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger writing to stderr, colored when stderr is a terminal.
func New(level slog.Leveler) *slog.Logger {
	return slog.New(NewHandler(colorable.NewColorable(os.Stderr), level, isatty.IsTerminal(os.Stderr.Fd())))
}

// NewHandler returns a tint handler that drops empty attributes.
func NewHandler(w io.Writer, level slog.Leveler, color bool) slog.Handler {
	return tint.NewHandler(w, &tint.Options{
		Level:       level,
		TimeFormat:  "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:     !color,
		ReplaceAttr: dropEmpty,
	})
}

func dropEmpty(_ []string, a slog.Attr) slog.Attr {
	skip := false
	switch t := a.Value.Any().(type) {
	case string:
		skip = t == ""
	case bool:
		skip = !t
	case time.Duration:
		skip = t == 0
	case nil:
		skip = true
	}
	if skip {
		return slog.Attr{}
	}
	return a
}

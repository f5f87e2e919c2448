// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	App = "tsipmon"

	// EnvLevel overrides the configured level when set to a known level name.
	EnvLevel = "TSIPMON_LOG_LEVEL"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New returns a logger tagged with the app name. The level named by
// TSIPMON_LOG_LEVEL wins over opts.Level.
func New(opts Options) (zerolog.Logger, error) {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		l, ok := ParseLevel(opts.Level)
		if !ok {
			return zerolog.Nop(), fmt.Errorf("unknown log level %q", opts.Level)
		}
		lvl = l
	}
	if l, ok := ParseLevel(os.Getenv(EnvLevel)); ok {
		lvl = l
	}

	switch opts.Format {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: !isTerminal(out)}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", App).Logger(), nil
}

// ParseLevel maps a level name to a zerolog level. The empty string and
// unrecognized names report false.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.NoLevel, false
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

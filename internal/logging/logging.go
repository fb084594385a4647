package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Config selects sinks and level.
type Config struct {
	Level   string
	Console bool
	File    string
	// Stderr routes the primary sink to stderr, which keeps stdout clean for
	// the stdio MCP transport.
	Stderr bool
}

// New builds the root logger. The returned closer releases the log file when
// one was opened and is always non-nil.
func New(cfg Config) (zerolog.Logger, io.Closer) {
	zerolog.ErrorFieldName = "err"
	zerolog.TimeFieldFormat = consoleTimeFormat

	var out io.Writer = os.Stdout
	if cfg.Stderr {
		out = os.Stderr
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: consoleTimeFormat}
	}

	writers := []io.Writer{out}
	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(cfg.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logging: failed opening log file %q: %v\n", path, err)
		} else {
			writers = append(writers, zerolog.SyncWriter(f))
			closer = f
		}
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}
	lvl := ParseLevel(cfg.Level, zerolog.InfoLevel)
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), closer
}

// Component derives a logger tagged with the component name.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// ParseLevel maps a config string to a zerolog level, falling back to def.
func ParseLevel(s string, def zerolog.Level) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return def
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

// New builds the root logger and installs it as zerolog's context default.
// Format "console" is for terminals; "json" emits raw lines for a log
// collector.
func New(level, format string) zerolog.Logger {
	l := build(os.Stderr, level, format)
	zerolog.DefaultContextLogger = &l
	return l
}

func build(out io.Writer, level, format string) zerolog.Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	w := out
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	goVersion, gitRevision := buildMeta()

	return zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Str("go_version", goVersion).
		Str("git_revision", gitRevision).
		Logger()
}

// parseLevel maps the configured level to a zerolog level, falling back to
// info. ParseLevel treats the empty string as NoLevel without an error, so
// both failure modes count as unset.
func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		// The main logger isn't configured yet, so warn on stderr directly.
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', defaulting to 'info'\n", level)
		return zerolog.InfoLevel
	}
	if parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}

func buildMeta() (goVersion, gitRevision string) {
	goVersion, gitRevision = "unknown", "unknown"

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	goVersion = info.GoVersion
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			gitRevision = s.Value
		}
	}
	return
}

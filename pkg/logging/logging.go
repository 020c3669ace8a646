// pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects the global logger output.
type Options struct {
	Level  string    // debug, info, warn, error; empty means error
	Format string    // text or json
	File   string    // Append to this file instead of Writer
	Writer io.Writer // Defaults to stderr
}

// stdLogWriter forwards stdlib log output to zerolog at debug level.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Str("source", "stdlog").Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

// ConfigureGlobalLogging installs the global zerolog logger. Scan output
// goes to stdout, so logs default to stderr. The returned func closes the
// log file, if any.
func ConfigureGlobalLogging(opts Options) (func() error, error) {
	level := parseLogLevel(opts.Level)

	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	closer := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return closer, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = f.Close
	}
	if !strings.EqualFold(opts.Format, "json") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opts.File != ""}
	}

	ConfigureGlobal(level)
	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}
	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
	return closer, nil
}

// ConfigureGlobal sets the global level only.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// LevelForVerbosity raises configured by the -v count: one step to info,
// two or more to debug. It never lowers the configured level.
func LevelForVerbosity(configured string, verbosity int) string {
	level := parseLogLevel(configured)
	switch {
	case verbosity >= 2 && level > zerolog.DebugLevel:
		level = zerolog.DebugLevel
	case verbosity == 1 && level > zerolog.InfoLevel:
		level = zerolog.InfoLevel
	}
	return level.String()
}

// NewLogger returns a JSON logger on stderr tagged with component.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return NewLoggerWithWriter(component, level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger on w tagged with component.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

func parseLogLevel(levelString string) zerolog.Level {
	if levelString == "" {
		return zerolog.ErrorLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil || level == zerolog.NoLevel {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

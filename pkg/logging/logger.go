// Package logging provides structured logging configuration using zerolog.
//
// Loggers are built once at process start and handed to components through
// their config structs. Nothing in this package touches zerolog's global logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages and above.
	LevelError LogLevel = "error"

	// LevelCritical logs critical messages only.
	LevelCritical LogLevel = "critical"
)

const (
	// DefaultName is the logger name written at the start of every line.
	DefaultName = "user"

	// DefaultPath is the log file used when no output writer is configured.
	DefaultPath = "logs.log"

	// TimeFormat is the timestamp layout of a log line.
	TimeFormat = "2006-01-02 15:04:05"

	// NameFieldName is the event field holding the logger name.
	NameFieldName = "logger"

	// CriticalLevel is the zerolog level used for critical events.
	// Events are emitted through WithLevel, so the process never exits.
	CriticalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	// Name is the logger name (default: "user").
	Name string

	// Level is the minimum log level to output.
	Level LogLevel

	// Path is the file appended to when Output is nil (default: "logs.log").
	Path string

	// Output overrides Path when set. It is never closed by Setup's closer.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Name:  DefaultName,
		Level: LevelInfo,
		Path:  DefaultPath,
	}
}

// Setup builds a logger writing "<name> - <time> - <LEVEL> - <message>" lines.
// When cfg.Output is nil the file at cfg.Path is opened in append mode; the
// returned closer closes it.
func Setup(cfg Config) (zerolog.Logger, io.Closer, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}

	var closer io.Closer = nopCloser{}
	out := cfg.Output
	if out == nil {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", cfg.Path, err)
		}
		out = f
		closer = f
	}

	logger := zerolog.New(NewLineWriter(out)).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Str(NameFieldName, cfg.Name).
		Logger()

	return logger, closer, nil
}

// NewLineWriter wraps out in a console writer producing the file line layout.
func NewLineWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:     out,
		NoColor: true,
		PartsOrder: []string{
			NameFieldName,
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FieldsExclude:   []string{NameFieldName},
		FormatTimestamp: formatTimestamp,
		FormatLevel:     formatLevel,
		FormatMessage:   formatMessage,
	}
}

// ParseLevel converts LogLevel to zerolog.Level.
func ParseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "critical", "fatal":
		return CriticalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Critical starts a critical-severity event on logger.
func Critical(logger *zerolog.Logger) *zerolog.Event {
	return logger.WithLevel(CriticalLevel)
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

func formatTimestamp(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return fmt.Sprintf("- %v", i)
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return "- " + s
	}
	return "- " + t.Local().Format(TimeFormat)
}

func formatLevel(i interface{}) string {
	s, _ := i.(string)
	switch s {
	case zerolog.LevelDebugValue:
		return "- DEBUG"
	case zerolog.LevelInfoValue:
		return "- INFO"
	case zerolog.LevelWarnValue:
		return "- WARNING"
	case zerolog.LevelErrorValue:
		return "- ERROR"
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return "- CRITICAL"
	case "":
		return "- NOTSET"
	default:
		return "- " + strings.ToUpper(s)
	}
}

func formatMessage(i interface{}) string {
	if i == nil {
		return "-"
	}
	return fmt.Sprintf("- %s", i)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Log Level Guidelines:
//
// Debug: per-response status lines of sequential batches
//
// Info: process lifecycle markers, per-response status of single lookups
// and concurrent batches, batch completion
//
// Warn: metrics textfile failures that do not abort a batch run
//
// Error: failed requests inside a batch
//
// Critical: lookups that ended in the not-found message, errors escaping main
//
// Context Fields:
//   - logger: logger name (rendered first, not as a field)
//   - component: emitting package
//   - endpoint: PokeAPI endpoint name
//   - id: resource id or name
//   - status: HTTP status code
//   - kind: error kind (not_found, transport, decode)
//   - mode: batch mode (concurrent, sequential)

package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"

	"github.com/rs/zerolog"
)

// Global logger instance. Starts disabled so packages used as a library stay
// quiet until Init is called.
var log = zerolog.Nop()

// Init initializes the global logger for the HTTP service. Production emits
// JSON to stdout, every other environment gets the console writer.
func Init(cfg config.LoggerConfig) {
	var output io.Writer = os.Stdout
	if cfg.Environment != "production" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}
	InitWithWriter(cfg.Level, output)
}

// InitWithWriter initializes the global logger on an arbitrary writer.
// resolverctl uses it to keep stdout free for command output.
func InitWithWriter(level string, w io.Writer) {
	log = zerolog.New(w).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

// parseLogLevel converts string log level to zerolog.Level
func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &log
}

// Component returns a child logger tagged with the owning subsystem, e.g.
// "matchconfig" or "cache".
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

func Debug() *zerolog.Event { return log.Debug() }

func Info() *zerolog.Event { return log.Info() }

func Warn() *zerolog.Event { return log.Warn() }

func Error() *zerolog.Event { return log.Error() }

func Fatal() *zerolog.Event { return log.Fatal() }

// With creates a child logger context with additional fields
func With() zerolog.Context {
	return log.With()
}

// WithFields creates a child logger with structured fields
func WithFields(fields map[string]any) zerolog.Logger {
	ctx := log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return ctx.Logger()
}

package logger

import (
	"bytes"
	"testing"

	"github.com/fallowearthai/chainreactions-backend-railway-sub005/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"trace level", "trace", zerolog.TraceLevel},
		{"debug level", "debug", zerolog.DebugLevel},
		{"warning alias", "warning", zerolog.WarnLevel},
		{"error level", "error", zerolog.ErrorLevel},
		{"surrounding whitespace", "  error ", zerolog.ErrorLevel},
		{"mixed case Debug", "Debug", zerolog.DebugLevel},
		{"disabled", "off", zerolog.Disabled},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.level))
		})
	}
}

func TestInit(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		t.Run(env, func(t *testing.T) {
			Init(config.LoggerConfig{Level: "warn", Environment: env})
			assert.Equal(t, zerolog.WarnLevel, Get().GetLevel())
		})
	}
}

func TestInitWithWriter_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("warn", &buf)

	Debug().Msg("debug message")
	Info().Msg("info message")
	Warn().Str("entity", "MIT").Msg("warn message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, `"entity":"MIT"`)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log = zerolog.New(&buf)

	l := Component("cache")
	l.Info().Msg("purged")

	assert.Contains(t, buf.String(), `"component":"cache"`)
	assert.Contains(t, buf.String(), "purged")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	log = zerolog.New(&buf)

	child := WithFields(map[string]any{
		"config_version": "abc123",
		"candidates":     3,
	})
	child.Info().Msg("batch scored")

	output := buf.String()
	assert.Contains(t, output, "abc123")
	assert.Contains(t, output, `"candidates":3`)
}

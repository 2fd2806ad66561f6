package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew_WritesToConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Output: &buf})

	l.Info().Str("strategy", "0xabc").Msg("strategy registered")

	assert.Contains(t, buf.String(), "strategy registered")
	assert.Contains(t, buf.String(), `"app":"treasury"`)
	assert.Contains(t, buf.String(), `"strategy":"0xabc"`)
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		level    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestNew_SetsGlobalLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := New(Config{Level: "error", Output: &buf})
	l.Info().Msg("suppressed")

	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())
	assert.Empty(t, buf.String())
}

func TestNew_PrettyOutput(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	l := New(Config{Level: "info", Pretty: true, Output: &buf})
	l.Info().Msg("pretty line")

	assert.Contains(t, buf.String(), "pretty line")
	assert.NotContains(t, buf.String(), `"message"`)
}

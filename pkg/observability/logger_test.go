package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")
		entry := decodeEntry(t, &buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "info message", entry["msg"])
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		assert.NotZero(t, buf.Len())
	})
}

func TestLogger_WithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("key", "value").Debug("message")

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "value", entry["key"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", DebugLevel.String())
	assert.Equal(t, "ERROR", ErrorLevel.String())
}

func TestFromContext(t *testing.T) {
	t.Run("uses fallback and request id", func(t *testing.T) {
		var buf bytes.Buffer
		fallback := NewLogger(InfoLevel, &buf)

		ctx := WithRequestID(context.Background(), "req-123")
		FromContext(ctx, fallback).Info("hello")

		entry := decodeEntry(t, &buf)
		assert.Equal(t, "req-123", entry["request_id"])
	})

	t.Run("prefers logger from context", func(t *testing.T) {
		var fallbackBuf, ctxBuf bytes.Buffer
		fallback := NewLogger(InfoLevel, &fallbackBuf)
		ctxLogger := NewLogger(InfoLevel, &ctxBuf).WithField("component", "test")

		ctx := WithLogger(context.Background(), ctxLogger)
		FromContext(ctx, fallback).Info("hello")

		assert.Zero(t, fallbackBuf.Len())
		entry := decodeEntry(t, &ctxBuf)
		assert.Equal(t, "test", entry["component"])
	})

	t.Run("nil fallback uses standard logger", func(t *testing.T) {
		logger := FromContext(context.Background(), nil)
		assert.Equal(t, logrus.StandardLogger(), logger)
	})
}

func TestGetRequestID_Empty(t *testing.T) {
	assert.Equal(t, "", GetRequestID(context.Background()))
}

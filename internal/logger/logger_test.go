package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_LevelsAndServiceField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("warn", &buf)

	l.Info("dropped")
	l.Warn("kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "auth", entry["service"])
}

func TestCorrelationIDRoundTrip(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "corr-123")
	assert.Equal(t, "corr-123", CorrelationIDFromContext(ctx))
	assert.Empty(t, CorrelationIDFromContext(context.Background()))
}

func TestFromContext_DefaultsWhenUnset(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))
}

func TestWithContext_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter("info", &buf)

	ctx := WithCorrelationID(context.Background(), "corr-456")
	WithContext(ctx, base).Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "corr-456", entry["correlation_id"])
}

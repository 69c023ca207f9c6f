// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/authgate/authgate/pkg/errutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "not JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONCarriesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "1.2.3", "json", &buf)

	logger.Info("signed in")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "signed in", entry["msg"])
	assert.Equal(t, "authgate", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "text", &buf)

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "msg=hello")
	assert.Contains(t, out, "service=authgate")
}

func TestSetup_UnknownFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("authgate", "dev", "", &buf).Info("x")
	decodeLine(t, &buf)

	buf.Reset()
	Setup("authgate", "dev", "logfmt", &buf).Info("x")
	decodeLine(t, &buf)
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	Setup("authgate", "dev", "json", &buf).Info("plain")

	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_WithAttrsAndGroupKeepIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("authgate", "dev", "json", &buf).With("component", "http").WithGroup("req")

	logger.Info("served", "status", 200)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "http", entry["component"])
	group, ok := entry["req"].(map[string]any)
	require.True(t, ok, "group missing: %v", entry)
	assert.EqualValues(t, 200, group["status"])
	assert.Equal(t, "authgate", group["service"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	errutil.AssertErrorCode(t, err, "LOG_INVALID_LEVEL")
}

func TestNew_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Service: "authgate", Level: "warn", Output: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "kept")
}

func TestNew_RejectsUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	errutil.AssertErrorCode(t, err, "LOG_INVALID_FORMAT")
}

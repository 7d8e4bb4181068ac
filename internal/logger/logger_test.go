package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies mapping from strings to zapcore.Level and handling of unknown values.
func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"dpanic":  zapcore.DPanicLevel,
		"warning": zapcore.WarnLevel,
	}
	for s, lvl := range cases {
		got, ok := ParseLogLevel(s)
		require.True(t, ok, s)
		require.Equal(t, lvl, got)
	}

	_, ok := ParseLogLevel("unknown")
	require.False(t, ok)
}

// TestContextLogger checks that named loggers and fields flow through the context.
func TestContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	ctx := ToContext(context.Background(), New(&buf, zapcore.DebugLevel))
	ctx = WithName(ctx, "publisher")
	ctx = WithKV(ctx, "channel", "stable")
	ctx = WithFields(ctx, "version", "1.2.3")

	InfoKV(ctx, "uploaded", "platform", "win-x64")
	Debugf(ctx, "attempt %d", 2)

	out := buf.String()
	require.Contains(t, out, "publisher")
	require.Contains(t, out, "uploaded")
	require.Contains(t, out, `"channel": "stable"`)
	require.Contains(t, out, `"version": "1.2.3"`)
	require.Contains(t, out, `"platform": "win-x64"`)
	require.Contains(t, out, "attempt 2")
}

// TestFromContextFallback returns the global logger when nothing is stored.
func TestFromContextFallback(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is part of the contract.
	require.Same(t, Logger(), FromContext(nil))
	require.Same(t, Logger(), FromContext(context.Background()))
}

package logging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level zapcore.Level) (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := NewLogger(LogConfig{Level: LevelInfo, Format: format, OutputPaths: []string{"stdout"}})
		require.NoError(t, err, format)
		assert.NotNil(t, l)
	}
}

func TestNewLogger_EmptyOutputPathsRejected(t *testing.T) {
	l, err := NewLogger(LogConfig{OutputPaths: []string{}})
	assert.Error(t, err)
	assert.Nil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("verbose"))
}

func TestSetLevel_ChangesCurrentLevel(t *testing.T) {
	SetLevel(LevelDebug)
	assert.Equal(t, "debug", CurrentLevel())
	SetLevel(LevelInfo)
	assert.Equal(t, "info", CurrentLevel())
}

func TestZapLogger_FieldsAreTyped(t *testing.T) {
	l, logs := newObservedLogger(zapcore.DebugLevel)

	l.Info("session recorded",
		String("buyer", "acme"),
		Int("count", 3),
		Int64("ms", 12),
		Uint64("user_hash", 42),
		Hex("session_id", 0xdeadbeef),
		Float64("rtt", 1.5),
		Bool("next", true),
		Duration("took", time.Second),
		Err(errors.New("boom")),
		Any("tags", []string{"a"}),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "session recorded", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "acme", ctx["buyer"])
	assert.Equal(t, int64(3), ctx["count"])
	assert.Equal(t, uint64(42), ctx["user_hash"])
	assert.Equal(t, "00000000deadbeef", ctx["session_id"])
	assert.Equal(t, true, ctx["next"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapLogger_LevelsAndChildren(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)

	l.Debug("dropped")
	child := l.Named("http").With(String("request_id", "r1"))
	child.Warn("slow")
	child.Error("failed")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "http", logs.All()[0].LoggerName)
	assert.Equal(t, "r1", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
}

func TestErr_Nil(t *testing.T) {
	assert.Equal(t, "<nil>", Err(nil).Value)
}

func TestNopLogger_AllMethodsNoOp(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.Debug("msg")
		l.Info("msg")
		l.Warn("msg")
		l.Error("msg")
		l.With(String("k", "v")).Named("x").Info("msg")
	})
}

func TestDefault_SetAndGet(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	l, _ := newObservedLogger(zapcore.InfoLevel)
	SetDefault(l)
	assert.Same(t, l, Default())

	SetDefault(nil)
	assert.Same(t, l, Default())
}

func TestContext_RoundTrip(t *testing.T) {
	l, logs := newObservedLogger(zapcore.InfoLevel)
	ctx := WithContext(context.Background(), l)

	FromContext(ctx).Info("hello")
	assert.Equal(t, 1, logs.Len())

	assert.NotNil(t, FromContext(context.Background()))
	//nolint:staticcheck
	assert.NotNil(t, FromContext(nil))
}

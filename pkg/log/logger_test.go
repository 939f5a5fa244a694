package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, format Formatter, level Level) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger := NewLogger(
		WithLevel(level),
		WithFormatter(format),
		WithOutput(NewConsoleOutput(WithCustomWriter(buf))),
	)
	return logger, buf
}

func TestJSONFormatterIncludesFields(t *testing.T) {
	logger, buf := newBufferLogger(t, &JSONFormatter{}, InfoLevel)

	logger.WithComponent("store").Info("opened", Str("path", "/tmp/x"), Int("keys", 3))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "INFO", out["level"])
	assert.Equal(t, "opened", out["message"])
	assert.Equal(t, "store", out["component"])
	assert.Equal(t, "/tmp/x", out["path"])
	assert.Equal(t, float64(3), out["keys"])
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(t, &JSONFormatter{}, WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden too")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestTextFormatterSortsFields(t *testing.T) {
	logger, buf := newBufferLogger(t, &TextFormatter{DisableColors: true}, InfoLevel)

	logger.Info("hello", Str("b", "2"), Str("a", "1"))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "hello a=1 b=2\n"), line)
	assert.Contains(t, line, "INFO")
}

func TestRedactionHook(t *testing.T) {
	buf := &bytes.Buffer{}
	logger, err := ApplyConfig(&Config{Level: "debug", Format: "json"},
		WithOutput(NewConsoleOutput(WithCustomWriter(buf))))
	require.NoError(t, err)

	logger.Info("login", Str("password", "hunter2"), Str("Token", "abc"), Str("user", "admin"))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, RedactedValue, out["password"])
	assert.Equal(t, RedactedValue, out["Token"])
	assert.Equal(t, "admin", out["user"])
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	_, err := ApplyConfig(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = ApplyConfig(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestWithContextAddsRequestID(t *testing.T) {
	logger := NewTestLogger()
	ctx := WithRequestID(context.Background(), "req-1")

	logger.WithContext(ctx).Info("handled")

	assert.True(t, logger.AssertLoggedWithField(InfoLevel, "handled", RequestIDKey, "req-1"))
}

func TestTestLoggerSharesBufferWithChildren(t *testing.T) {
	logger := NewTestLogger()
	child := logger.WithComponent("pipeline").WithError(errors.New("boom"))

	child.Error("fetch failed")

	entries := logger.GetEntries()
	require.Len(t, entries, 1)
	component, ok := entries[0].Field(ComponentKey)
	require.True(t, ok)
	assert.Equal(t, "pipeline", component)
	assert.True(t, logger.AssertLoggedWithField(ErrorLevel, "fetch", "error", "boom"))
}

func TestToStdLogger(t *testing.T) {
	logger := NewTestLogger()
	std := ToStdLogger(logger, ErrorLevel)

	std.Println("http: TLS handshake error")

	assert.True(t, logger.AssertLogged(ErrorLevel, "TLS handshake error"))
}

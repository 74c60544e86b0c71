package logging

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

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("warehouse").
		With("collector", "links").
		Warn(context.Background(), errors.New("slow"), "collector overran budget", "token_index", 7)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "collector overran budget", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "warehouse", record["component"])
	assert.Equal(t, "links", record["collector"])
	assert.Equal(t, "slow", record["error"])
	assert.EqualValues(t, 7, record["token_index"])
}

func TestStructuredLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Debug(context.Background(), "hidden debug")
	logger.Info(context.Background(), "hidden info")
	logger.Warn(context.Background(), nil, "visible warn")
	logger.Error(context.Background(), nil, "visible error")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible warn")
	assert.Contains(t, out, "visible error")
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "plain", SanitizeForLog("plain"))
	assert.Equal(t, `a\x0ab`, SanitizeForLog("a\nb"))

	long := strings.Repeat("x", 500)
	got := SanitizeForLog(long)
	assert.True(t, strings.HasSuffix(got, "...[TRUNCATED]"))
	assert.Len(t, got, 200+len("...[TRUNCATED]"))
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "text", Output: &buf})

	op := StartOperation(logger, "dispatch")
	d := op.End(context.Background(), "tokens", 10)

	assert.GreaterOrEqual(t, int64(d), int64(0))
	assert.Contains(t, buf.String(), "operation=dispatch")
	assert.Contains(t, buf.String(), "tokens=10")
}

func TestNopLogger(t *testing.T) {
	l := Nop().WithComponent("x").With("k", "v")
	assert.NotPanics(t, func() {
		l.Error(context.Background(), errors.New("e"), "msg")
	})
}

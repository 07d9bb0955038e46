package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With("target", "t1")

	l.Info("开始拦截", "traceId", "abc", "attempt", 2)

	line := buf.Bytes()
	require.True(t, gjson.ValidBytes(line))
	assert.Equal(t, "info", gjson.GetBytes(line, "level").String())
	assert.Equal(t, "开始拦截", gjson.GetBytes(line, "message").String())
	assert.Equal(t, "t1", gjson.GetBytes(line, "target").String())
	assert.Equal(t, "abc", gjson.GetBytes(line, "traceId").String())
	assert.Equal(t, int64(2), gjson.GetBytes(line, "attempt").Int())
}

func TestWriterLoggerErr(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "info").Err(errors.New("boom"), "请求失败")

	assert.Equal(t, "boom", gjson.GetBytes(buf.Bytes(), "error").String())
	assert.Equal(t, "error", gjson.GetBytes(buf.Bytes(), "level").String())
}

func TestWriterLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, "warn").Debug("忽略")
	assert.Zero(t, buf.Len())
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	assert.NotPanics(t, func() {
		l.With("k", "v").Err(errors.New("x"), "msg")
	})
}

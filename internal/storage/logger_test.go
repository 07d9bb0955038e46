package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"llmsecrets/internal/ctxkeys"
	"llmsecrets/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func sqlOf(q string) func() (string, int64) {
	return func() (string, int64) { return q, 1 }
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	g := newGormLogger(logger.NewWriter(&buf, "debug"), gormlogger.Warn)

	g.Trace(context.Background(), time.Now(), sqlOf("SELECT 1"), gorm.ErrRecordNotFound)
	g.Trace(context.Background(), time.Now(), sqlOf("SELECT 1"), nil)
	assert.Zero(t, buf.Len())
}

func TestGormLoggerReportsFailureWithTrace(t *testing.T) {
	var buf bytes.Buffer
	g := newGormLogger(logger.NewWriter(&buf, "debug"), gormlogger.Warn)
	ctx := ctxkeys.WithTraceID(context.Background(), "trace-1")

	g.Trace(ctx, time.Now(), sqlOf("UPDATE x"), errors.New("disk full"))

	line := buf.Bytes()
	assert.Equal(t, "error", gjson.GetBytes(line, "level").String())
	assert.Equal(t, "disk full", gjson.GetBytes(line, "error").String())
	assert.Equal(t, "trace-1", gjson.GetBytes(line, "traceId").String())
	assert.Equal(t, "UPDATE x", gjson.GetBytes(line, "sql").String())
}

func TestGormLoggerReportsSlowQuery(t *testing.T) {
	var buf bytes.Buffer
	g := newGormLogger(logger.NewWriter(&buf, "debug"), gormlogger.Warn)

	g.Trace(context.Background(), time.Now().Add(-time.Second), sqlOf("SELECT 2"), nil)

	assert.Equal(t, "warn", gjson.GetBytes(buf.Bytes(), "level").String())
	assert.Equal(t, slowThreshold.String(), gjson.GetBytes(buf.Bytes(), "threshold").String())
}

func TestGormLoggerSilent(t *testing.T) {
	var buf bytes.Buffer
	g := newGormLogger(logger.NewWriter(&buf, "debug"), gormlogger.Warn).LogMode(gormlogger.Silent)

	g.Trace(context.Background(), time.Now(), sqlOf("UPDATE x"), errors.New("disk full"))
	assert.Zero(t, buf.Len())
}

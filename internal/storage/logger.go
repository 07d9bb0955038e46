package storage

import (
	"context"
	"errors"
	"time"

	"llmsecrets/internal/ctxkeys"
	"llmsecrets/internal/logger"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 本地 sqlite 单键读写超过该时长视为异常
const slowThreshold = 200 * time.Millisecond

// gormLogger 把 gorm 日志转发到结构化日志，并带上当前拦截的 traceId
type gormLogger struct {
	log   logger.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(l logger.Logger, level gormlogger.LogLevel) *gormLogger {
	return &gormLogger{log: l, level: level, slow: slowThreshold}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) fields(ctx context.Context, data []any) []any {
	kv := make([]any, 0, len(data)+2)
	if id := ctxkeys.TraceID(ctx); id != "" {
		kv = append(kv, "traceId", id)
	}
	return append(kv, data...)
}

func (g *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		g.log.Debug(msg, g.fields(ctx, data)...)
	}
}

func (g *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(msg, g.fields(ctx, data)...)
	}
}

func (g *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		g.log.Error(msg, g.fields(ctx, data)...)
	}
}

// Trace 记录失败与慢查询；键不存在属于正常路径，不记录
func (g *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := elapsed > g.slow

	if !failed && !slow && g.level < gormlogger.Info {
		return
	}
	sql, rows := fc()
	kv := g.fields(ctx, []any{"sql", sql, "rows", rows, "elapsed", elapsed.String()})

	switch {
	case failed && g.level >= gormlogger.Error:
		g.log.Err(err, "本地存储读写失败", kv...)
	case slow && g.level >= gormlogger.Warn:
		g.log.Warn("本地存储读写过慢", append(kv, "threshold", g.slow.String())...)
	case g.level >= gormlogger.Info:
		g.log.Debug("本地存储读写", kv...)
	}
}

package database

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger 将 GORM 的日志写入统一日志，并在当前 span 上记录每条语句。
// ErrRecordNotFound 视为正常结果。
type gormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = gormLogger{}

func newGormLogger(level gormlogger.LogLevel, slow time.Duration) gormLogger {
	return gormLogger{level: level, slow: slow}
}

func (l gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	l.level = level
	return l
}

func (l gormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		logger.Global().WithCtx(ctx).Infof(msg, data...)
	}
}

func (l gormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		logger.Global().WithCtx(ctx).Warnf(msg, data...)
	}
}

func (l gormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		logger.Global().WithCtx(ctx).Errorf(msg, data...)
	}
}

// classify picks the level a finished statement is logged at.
func (l gormLogger) classify(elapsed time.Duration, err error) gormlogger.LogLevel {
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return gormlogger.Error
	case l.slow > 0 && elapsed > l.slow:
		return gormlogger.Warn
	}
	return gormlogger.Info
}

func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	level := l.classify(elapsed, err)
	span := trace.SpanFromContext(ctx)
	logIt := l.level > gormlogger.Silent && l.level >= level
	if !logIt && !span.IsRecording() {
		return
	}

	sql, rows := fc()
	if span.IsRecording() {
		span.AddEvent("db.statement", trace.WithAttributes(
			attribute.String("db.statement", sql),
			attribute.Int64("db.rows_affected", rows),
			attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
		))
	}
	if !logIt {
		return
	}

	log := logger.Global().WithCtx(ctx)
	ms := float64(elapsed.Microseconds()) / 1e3
	switch level {
	case gormlogger.Error:
		log.Errorw("Database statement failed", "error", err.Error(), "sql", sql, "rows", rows, "duration_ms", ms)
	case gormlogger.Warn:
		log.Warnw("Slow database statement", "sql", sql, "rows", rows, "duration_ms", ms, "threshold", l.slow.String())
	default:
		log.Debugw("Database statement", "sql", sql, "rows", rows, "duration_ms", ms)
	}
}

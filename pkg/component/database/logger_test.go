package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestGormLogger_Classify(t *testing.T) {
	l := newGormLogger(gormlogger.Warn, 100*time.Millisecond)

	assert.Equal(t, gormlogger.Error, l.classify(time.Millisecond, errors.New("boom")))
	assert.Equal(t, gormlogger.Info, l.classify(time.Millisecond, gorm.ErrRecordNotFound))
	assert.Equal(t, gormlogger.Warn, l.classify(time.Second, nil))
	assert.Equal(t, gormlogger.Info, l.classify(time.Millisecond, nil))

	noSlow := newGormLogger(gormlogger.Warn, 0)
	assert.Equal(t, gormlogger.Info, noSlow.classify(time.Hour, nil))
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	l := newGormLogger(gormlogger.Silent, 0)
	louder := l.LogMode(gormlogger.Info)

	assert.Equal(t, gormlogger.Silent, l.level)
	assert.Equal(t, gormlogger.Info, louder.(gormLogger).level)
}

func TestGormLogger_TraceRecordsSpanEvent(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx, span := tp.Tracer("test").Start(context.Background(), "query")

	var called int
	newGormLogger(gormlogger.Silent, 0).Trace(ctx, time.Now(), func() (string, int64) {
		called++
		return "SELECT 1", 1
	}, nil)
	span.End()

	assert.Equal(t, 1, called)
	require.Len(t, rec.Ended(), 1)
	events := rec.Ended()[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "db.statement", events[0].Name)
}

func TestGormLogger_TraceSkipsWhenSilentAndUntraced(t *testing.T) {
	newGormLogger(gormlogger.Silent, 0).Trace(context.Background(), time.Now(), func() (string, int64) {
		t.Fatal("statement should not be rendered")
		return "", 0
	}, nil)
}

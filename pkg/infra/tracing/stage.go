package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName 是 agriqa 所有 span 使用的 tracer 名称。
const InstrumentationName = "github.com/kart-io/agriqa"

// Stage 表示问答流程中的一个阶段（分解、排序、检索、合成）。
type Stage struct {
	span trace.Span
}

// StartStage starts a child span named name. It works against the global
// tracer provider, so it is a no-op until NewProvider installs one.
func StartStage(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *Stage) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, &Stage{span: span}
}

// Set attaches attributes to the stage span.
func (s *Stage) Set(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// Event records a named event on the stage span.
func (s *Stage) Event(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End closes the span, marking it failed when err is non-nil.
func (s *Stage) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// TraceID returns the active trace id, or "" outside a sampled span.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

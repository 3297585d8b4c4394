package middleware

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shrek82/jbulk/core"
)

// ContextKey is the type of the context keys Tracing reads.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	UserIPKey    ContextKey = "user_ip"
	TraceIDKey   ContextKey = "trace_id"
)

// TracingMiddleware adds tracing information to each batch.
// It copies request ids from the context into the batch's log fields
// and wraps the batch in an OpenTelemetry span.
type TracingMiddleware struct {
	tracer trace.Tracer
}

// NewTracing creates a TracingMiddleware using the global tracer provider.
func NewTracing() *TracingMiddleware {
	return &TracingMiddleware{tracer: otel.Tracer("jbulk")}
}

// NewTracingWith creates a TracingMiddleware using tracer.
func NewTracingWith(tracer trace.Tracer) *TracingMiddleware {
	return &TracingMiddleware{tracer: tracer}
}

func (m *TracingMiddleware) Name() string {
	return "Tracing"
}

func (m *TracingMiddleware) Init(e *core.Engine) error {
	return nil
}

func (m *TracingMiddleware) Shutdown() error {
	return nil
}

func (m *TracingMiddleware) Process(ctx context.Context, batch *core.Batch, next core.BatchFunc) (*core.Result, error) {
	fields := make(map[string]any)
	for _, key := range []ContextKey{RequestIDKey, UserIPKey, TraceIDKey} {
		if v := ctx.Value(key); v != nil {
			fields[string(key)] = v
		}
	}

	ctx, span := m.tracer.Start(ctx, fmt.Sprintf("jbulk.%s", batch.Sink),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.table", batch.Table.Name),
			attribute.Int("batch.index", batch.Index),
			attribute.Int("batch.rows", batch.Table.Len()),
		),
	)
	defer span.End()

	if sc := span.SpanContext(); sc.HasTraceID() {
		if _, ok := fields[string(TraceIDKey)]; !ok {
			fields[string(TraceIDKey)] = sc.TraceID().String()
		}
	}
	if len(fields) > 0 {
		batch.WithFields(fields)
	}

	res, err := next(ctx, batch)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
		if res != nil {
			span.SetAttributes(attribute.Int64("batch.rows_affected", res.RowsAffected))
		}
	}
	return res, err
}

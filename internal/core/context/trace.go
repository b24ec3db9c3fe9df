package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext correlates log lines of one request or CLI run.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace attaches t to ctx.
func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// GetTrace returns the TraceContext of ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	t, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return t
}

// TraceFromSpan builds a TraceContext for the span active in ctx.
// Explicit ids (from inbound headers) win; missing ones are generated.
func TraceFromSpan(ctx context.Context, traceID, requestID string) *TraceContext {
	sc := trace.SpanContextFromContext(ctx)

	if traceID == "" && sc.HasTraceID() {
		traceID = sc.TraceID().String()
	}
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}

	spanID := ""
	if sc.HasSpanID() {
		spanID = sc.SpanID().String()
	}
	return &TraceContext{TraceID: traceID, SpanID: spanID, RequestID: requestID}
}

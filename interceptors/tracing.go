package interceptors

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	servicebridge "github.com/edwardmeng/ServiceBridge-sub001"
)

const tracerName = "github.com/edwardmeng/ServiceBridge-sub001/interceptors"

// Span attribute keys.
const (
	AttrService      = "servicebridge.service"
	AttrMethod       = "servicebridge.method"
	AttrInvocationID = "servicebridge.invocation_id"
	AttrResult       = "servicebridge.result"
)

// Tracing starts one span per call, named "Service.Method". Methods taking a
// context.Context as first parameter receive the span's context, so spans
// started by the target become children of the call span.
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a Tracing interceptor. A nil provider uses the global one.
func NewTracing(tp trace.TracerProvider) *Tracing {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Tracing{tracer: tp.Tracer(tracerName)}
}

func (t *Tracing) Name() string {
	return "tracing"
}

func (t *Tracing) Invoke(inv *servicebridge.MethodInvocation, next servicebridge.InvokeNext) *servicebridge.MethodReturn {
	method := inv.Method()
	ctx, span := t.tracer.Start(inv.Context(), method.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(AttrService, method.Service.String()),
			attribute.String(AttrMethod, method.Name),
			attribute.String(AttrInvocationID, inv.ID()),
		))
	defer span.End()

	inv.SetContext(ctx)
	ret := next(inv)

	result := outcome(ret.Err())
	span.SetAttributes(attribute.String(AttrResult, result))
	if err := ret.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return ret
}

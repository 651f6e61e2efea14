package tracing

import (
	"context"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartExecutionSpan starts the root span covering every run of one execution.
func StartExecutionSpan(ctx context.Context, tracer trace.Tracer, id, target string, runs int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "perfrun execution",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(
		attribute.String("perfrun.execution_id", id),
		attribute.String("url.full", target),
		attribute.Int("perfrun.runs", runs),
	)
	return ctx, span
}

// StartRunSpan starts a span for a single measurement run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, run int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "perfrun run",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.Int("perfrun.run", run))
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// envCarrier maps W3C trace context keys to environment variables, using the
// TRACEPARENT/TRACESTATE names understood by OpenTelemetry-aware tools.
type envCarrier map[string]string

func (c envCarrier) Get(key string) string {
	return c[strings.ToUpper(key)]
}

func (c envCarrier) Set(key, value string) {
	c[strings.ToUpper(key)] = value
}

func (c envCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// InjectEnv appends the trace context of ctx to env as KEY=value entries.
// env is returned unchanged when ctx carries no span.
func InjectEnv(ctx context.Context, env []string) []string {
	carrier := envCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	for _, k := range sortedKeys(carrier) {
		env = append(env, k+"="+carrier[k])
	}
	return env
}

func sortedKeys(c envCarrier) []string {
	keys := c.Keys()
	slices.Sort(keys)
	return keys
}

// Package tracer wires OpenTelemetry tracing for REST calls and pairing.
package tracer

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"clawmobile/internal/domain"
	"clawmobile/internal/infra/config"
)

const serviceName = "clawmobile"

// Span attribute keys.
const (
	AttrMethod    = "http.method"
	AttrPath      = "http.path"
	AttrStatus    = "http.status"
	AttrServer    = "clawmobile.server"
	AttrErrorCode = "clawmobile.error_code"
)

// Setup installs the global tracer provider and returns its shutdown func.
// Spans go nowhere unless cfg enables the stdout exporter, which writes to
// stderr so spans never interleave with chat output.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	return setup(ctx, cfg, os.Stderr)
}

func setup(_ context.Context, cfg config.TracerConfig, w io.Writer) (func(context.Context) error, error) {
	if !cfg.Enabled || cfg.Exporter == "" || cfg.Exporter == "noop" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}
	if cfg.Exporter != "stdout" {
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}
	// Commands are short-lived; a batcher would drop spans on exit.
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Start opens an internal span.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(serviceName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartRequest opens a client span for one REST call.
func StartRequest(ctx context.Context, op, method, path string) (context.Context, trace.Span) {
	return otel.Tracer(serviceName).Start(ctx, op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrMethod, method),
			attribute.String(AttrPath, path),
		),
	)
}

// SetHTTPStatus records the response status of a request span.
func SetHTTPStatus(span trace.Span, status int) {
	span.SetAttributes(attribute.Int(AttrStatus, status))
}

// End closes span, marking it failed with the error's code when err is set.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorCode, string(domain.ErrorCodeOf(err))))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

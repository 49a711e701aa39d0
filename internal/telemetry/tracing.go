// Package telemetry configures OpenTelemetry tracing for the HTTP surface.
package telemetry

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Settings struct {
	Endpoint    string
	ServiceName string
	Environment string
	SampleRatio float64
}

type ShutdownFunc func(context.Context) error

// Init installs a global tracer provider exporting over OTLP/HTTP. With no
// endpoint configured tracing stays disabled and the returned shutdown is a
// no-op.
func Init(ctx context.Context, s Settings) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	if s.Endpoint == "" {
		log.Println("[TRACING] No OTLP endpoint configured, tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(s.Endpoint), otlptracehttp.WithInsecure())
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(s.ServiceName),
		attribute.String("deployment.environment", s.Environment),
	))
	if err != nil {
		// Schema URL conflict with the SDK defaults.
		res = resource.NewSchemaless(
			semconv.ServiceName(s.ServiceName),
			attribute.String("deployment.environment", s.Environment),
		)
	}

	ratio := s.SampleRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}

	tp := trace.NewTracerProvider(
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
		trace.WithBatcher(exp),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Printf("[TRACING] Exporting spans to %s as %s", s.Endpoint, s.ServiceName)
	return tp.Shutdown, nil
}

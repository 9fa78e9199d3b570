package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// NewTracerProvider exports spans to the Jaeger collector at
// collectorEndpoint and installs the provider globally.
func NewTracerProvider(serviceName, collectorEndpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(collectorEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("unable to initialize exporter due: %w", err)
	}
	return install(serviceName, sdktrace.WithBatcher(exporter)), nil
}

// Setup installs a Jaeger-backed provider when collectorEndpoint is set.
// Otherwise spans stay on the no-op global provider. The returned func
// flushes pending spans.
func Setup(serviceName, collectorEndpoint string) (func(context.Context) error, error) {
	if collectorEndpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	tp, err := NewTracerProvider(serviceName, collectorEndpoint)
	if err != nil {
		return nil, err
	}
	return tp.Shutdown, nil
}

func install(serviceName string, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append(opts,
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp
}

package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const ServiceName = "storefront"

// Init installs the global tracer provider. With tracing disabled spans are
// still created but never sampled. The returned func flushes and stops the
// provider.
func Init(enabled bool) (func(context.Context) error, error) {
	return InitWithWriter(enabled, os.Stdout)
}

// InitWithWriter is Init with the exporter writing to w
func InitWithWriter(enabled bool, w io.Writer) (func(context.Context) error, error) {
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))

	if !enabled {
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.NeverSample()),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

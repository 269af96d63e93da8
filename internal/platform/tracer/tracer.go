// Package tracer sets up OpenTelemetry tracing for the service.
package tracer

import (
	"context"
	"strings"

	"github.com/Abdurahmanit/property-service/internal/platform/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

// Init exports spans over OTLP/gRPC to endpoint and installs the provider
// globally. An endpoint is host:port (plaintext) or a full URL. With no
// endpoint, or when the exporter cannot be built, the returned provider has
// no exporter and the global no-op provider stays in place. The caller
// shuts the provider down on exit.
func Init(ctx context.Context, serviceName, endpoint string, log *logger.Logger) *sdktrace.TracerProvider {
	if endpoint == "" {
		log.Info("OpenTelemetry tracing is disabled: tracing.otlp_endpoint is not set")
		return sdktrace.NewTracerProvider()
	}

	log.Info("initializing OpenTelemetry tracer",
		zap.String("service_name", serviceName),
		zap.String("otlp_endpoint", endpoint))

	var opts []otlptracegrpc.Option
	if strings.Contains(endpoint, "://") {
		opts = append(opts, otlptracegrpc.WithEndpointURL(endpoint))
	} else {
		opts = append(opts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		log.Error("failed to create OTLP trace exporter", zap.Error(err))
		return sdktrace.NewTracerProvider()
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		log.Error("failed to create OpenTelemetry resource", zap.Error(err))
		_ = exporter.Shutdown(ctx)
		return sdktrace.NewTracerProvider()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp
}
